package shopify

import (
	"strings"

	"github.com/cratecrew/boxops/internal/domain"
)

var addonKeywords = []string{"addon", "add-on", "add on", "extra", "gift", "merch"}
var ignoredKeywords = []string{"shipping", "insurance", "route package protection", "tip"}

// classifyLineItem maps catalog metadata onto the audit engine's line item
// classes. product_type is authoritative when the store maintains it;
// otherwise keyword heuristics over the title catch the common cases.
func classifyLineItem(li lineItemPayload) domain.LineItemClass {
	ptype := strings.ToLower(strings.TrimSpace(li.ProductType))
	switch ptype {
	case "addon", "add-on":
		return domain.ItemAddon
	case "ignored", "non-product":
		return domain.ItemIgnored
	}

	title := strings.ToLower(li.Title)
	for _, kw := range ignoredKeywords {
		if strings.Contains(title, kw) {
			return domain.ItemIgnored
		}
	}
	for _, kw := range addonKeywords {
		if strings.Contains(title, kw) {
			return domain.ItemAddon
		}
	}
	return domain.ItemSubscription
}
