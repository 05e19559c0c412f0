package audit

import (
	"sort"

	"github.com/cratecrew/boxops/internal/domain"
)

// Normalizer converts a raw order history into a flat, time-ordered list of
// box events. Addon and ignored line items are dropped, malformed line items
// are skipped at this boundary, and every surviving event carries either its
// resolved sequence number or nil for an unmapped SKU.
type Normalizer struct {
	resolver *Resolver
	sink     func(domain.BoxEvent)
}

// NewNormalizer creates a normalizer. sink, if non-nil, receives every
// unmapped event for out-of-band triage; it must not be dropped but it never
// influences the analyzer's verdict computation.
func NewNormalizer(resolver *Resolver, sink func(domain.BoxEvent)) *Normalizer {
	return &Normalizer{resolver: resolver, sink: sink}
}

// Normalize flattens orders into box events sorted ascending by
// (occurred_at, source_order_id). Duplicate purchases of the same sequence
// number are preserved as distinct events; surfacing them as an anomaly is
// the analyzer's job, not the normalizer's.
func (n *Normalizer) Normalize(orders []domain.Order) []domain.BoxEvent {
	var events []domain.BoxEvent

	for _, o := range orders {
		if o.OrderID == "" {
			continue
		}
		for _, li := range o.LineItems {
			if li.Class == domain.ItemAddon || li.Class == domain.ItemIgnored {
				continue
			}
			if li.SKU == "" && li.ProductName == "" {
				continue
			}
			if li.Quantity <= 0 {
				continue
			}

			ev := domain.BoxEvent{
				OccurredAt:     o.CreatedAt,
				SourceOrderID:  o.OrderID,
				RawSKU:         li.SKU,
				RawProductName: li.ProductName,
				Quantity:       li.Quantity,
			}
			if seq, ok := n.resolver.Resolve(li.SKU, li.ProductName); ok {
				s := seq
				ev.SequenceNumber = &s
			}
			events = append(events, ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].SourceOrderID < events[j].SourceOrderID
	})

	if n.sink != nil {
		for _, ev := range events {
			if !ev.Mapped() {
				n.sink(ev)
			}
		}
	}

	return events
}
