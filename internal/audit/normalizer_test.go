package audit

import (
	"testing"
	"time"

	"github.com/cratecrew/boxops/internal/domain"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver([]domain.SkuAlias{
		{RawSKU: "BOX-01", SequenceNumber: 1},
		{RawSKU: "BOX-02", SequenceNumber: 2},
	}, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestNormalizeDropsNonSubscriptionItems(t *testing.T) {
	orders := []domain.Order{
		{
			OrderID:   "1001",
			CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			LineItems: []domain.LineItem{
				{SKU: "BOX-01", ProductName: "Box One", Quantity: 1, Class: domain.ItemSubscription},
				{SKU: "ADDON-TEE", ProductName: "Club Tee", Quantity: 1, Class: domain.ItemAddon},
				{SKU: "SHIP-INS", ProductName: "Shipping Insurance", Quantity: 1, Class: domain.ItemIgnored},
			},
		},
	}

	events := NewNormalizer(testResolver(t), nil).Normalize(orders)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (addon and ignored items dropped)", len(events))
	}
	if events[0].RawSKU != "BOX-01" || !events[0].Mapped() || *events[0].SequenceNumber != 1 {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestNormalizeSkipsMalformedInput(t *testing.T) {
	orders := []domain.Order{
		{OrderID: "", CreatedAt: time.Now(), LineItems: []domain.LineItem{
			{SKU: "BOX-01", ProductName: "Box One", Quantity: 1, Class: domain.ItemSubscription},
		}},
		{OrderID: "1002", CreatedAt: time.Now(), LineItems: []domain.LineItem{
			{SKU: "", ProductName: "", Quantity: 1, Class: domain.ItemSubscription},
			{SKU: "BOX-02", ProductName: "Box Two", Quantity: 0, Class: domain.ItemSubscription},
			{SKU: "BOX-02", ProductName: "Box Two", Quantity: 1, Class: domain.ItemSubscription},
		}},
	}

	events := NewNormalizer(testResolver(t), nil).Normalize(orders)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (missing order id, empty item, zero quantity all skipped)", len(events))
	}
	if events[0].SourceOrderID != "1002" {
		t.Errorf("event order id = %s, want 1002", events[0].SourceOrderID)
	}
}

func TestNormalizeSortsByTimeThenOrderID(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{OrderID: "2002", CreatedAt: ts, LineItems: []domain.LineItem{
			{SKU: "BOX-02", ProductName: "Box Two", Quantity: 1, Class: domain.ItemSubscription},
		}},
		{OrderID: "2003", CreatedAt: ts.Add(-24 * time.Hour), LineItems: []domain.LineItem{
			{SKU: "BOX-01", ProductName: "Box One", Quantity: 1, Class: domain.ItemSubscription},
		}},
		{OrderID: "2001", CreatedAt: ts, LineItems: []domain.LineItem{
			{SKU: "BOX-01", ProductName: "Box One", Quantity: 1, Class: domain.ItemSubscription},
		}},
	}

	events := NewNormalizer(testResolver(t), nil).Normalize(orders)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	wantOrder := []string{"2003", "2001", "2002"}
	for i, want := range wantOrder {
		if events[i].SourceOrderID != want {
			t.Errorf("events[%d].SourceOrderID = %s, want %s", i, events[i].SourceOrderID, want)
		}
	}
}

func TestNormalizeUnmappedSink(t *testing.T) {
	orders := []domain.Order{
		{OrderID: "3001", CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), LineItems: []domain.LineItem{
			{SKU: "BOX-01", ProductName: "Box One", Quantity: 1, Class: domain.ItemSubscription},
			{SKU: "MYSTERY", ProductName: "Founders Crate", Quantity: 1, Class: domain.ItemSubscription},
		}},
	}

	var sunk []domain.BoxEvent
	events := NewNormalizer(testResolver(t), func(ev domain.BoxEvent) {
		sunk = append(sunk, ev)
	}).Normalize(orders)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (unmapped events stay in the stream)", len(events))
	}
	if len(sunk) != 1 {
		t.Fatalf("sink received %d events, want 1", len(sunk))
	}
	if sunk[0].RawSKU != "MYSTERY" || sunk[0].Mapped() {
		t.Errorf("unexpected sunk event: %+v", sunk[0])
	}

	// The mapped ladder is still clean; the gap in knowledge only costs
	// confidence.
	res := Analyze(events)
	if res.Status != domain.AuditClean {
		t.Errorf("status = %s, want clean (reasons %v)", res.Status, res.FlagReasons)
	}
	if res.ConfidenceScore >= 1.0 {
		t.Errorf("confidence = %v, want < 1.0", res.ConfidenceScore)
	}
}

func TestNormalizeThenAnalyzeEndToEnd(t *testing.T) {
	orders := []domain.Order{
		{OrderID: "4002", CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), LineItems: []domain.LineItem{
			{SKU: "BOX-02", ProductName: "Box Two", Quantity: 1, Class: domain.ItemSubscription},
			{SKU: "ADDON-TEE", ProductName: "Club Tee", Quantity: 2, Class: domain.ItemAddon},
		}},
		{OrderID: "4001", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), LineItems: []domain.LineItem{
			{SKU: "BOX-01", ProductName: "Box One", Quantity: 1, Class: domain.ItemSubscription},
		}},
	}

	events := NewNormalizer(testResolver(t), nil).Normalize(orders)
	res := Analyze(events)

	if res.Status != domain.AuditClean {
		t.Errorf("status = %s, want clean (reasons %v)", res.Status, res.FlagReasons)
	}
	if res.ProposedNextBox != 3 {
		t.Errorf("proposed next box = %d, want 3", res.ProposedNextBox)
	}
	if res.ConfidenceScore != 1.0 {
		t.Errorf("confidence = %v, want 1.0", res.ConfidenceScore)
	}
}
