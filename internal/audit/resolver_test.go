package audit

import (
	"testing"
	"time"

	"github.com/cratecrew/boxops/internal/domain"
)

func TestResolverAliasWinsOverPattern(t *testing.T) {
	aliases := []domain.SkuAlias{
		{RawSKU: "BOX-07", SequenceNumber: 7},
	}
	patterns := []domain.ProductPattern{
		{Pattern: "box", PatternType: domain.PatternContains, SequenceNumber: 99},
	}
	r, err := NewResolver(aliases, patterns)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	seq, ok := r.Resolve("BOX-07", "Box #7 - The Summit")
	if !ok || seq != 7 {
		t.Errorf("Resolve = (%d, %v), want (7, true): alias must win over pattern", seq, ok)
	}
}

func TestResolverAliasCaseInsensitive(t *testing.T) {
	r, err := NewResolver([]domain.SkuAlias{{RawSKU: "Box-03", SequenceNumber: 3}}, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	for _, sku := range []string{"box-03", "BOX-03", "  Box-03  "} {
		if seq, ok := r.Resolve(sku, ""); !ok || seq != 3 {
			t.Errorf("Resolve(%q) = (%d, %v), want (3, true)", sku, seq, ok)
		}
	}
}

func TestResolverPatternTypes(t *testing.T) {
	patterns := []domain.ProductPattern{
		{Pattern: "legacy-", PatternType: domain.PatternPrefix, SequenceNumber: 2, Priority: 1},
		{Pattern: "month three", PatternType: domain.PatternContains, SequenceNumber: 3, Priority: 2},
		{Pattern: `box #?(\d+)`, PatternType: domain.PatternRegex, SequenceNumber: 9, Priority: 3},
	}
	r, err := NewResolver(nil, patterns)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	tests := []struct {
		sku, name string
		wantSeq   int
		wantOK    bool
	}{
		{"LEGACY-BOX2", "Anything", 2, true},       // prefix on SKU, case-insensitive
		{"SKU-X", "The Month Three Crate", 3, true}, // contains on product name
		{"SKU-Y", "Box #4 Special", 9, true},       // regex on product name
		{"SKU-Z", "Gift Card", 0, false},
	}
	for _, tt := range tests {
		seq, ok := r.Resolve(tt.sku, tt.name)
		if seq != tt.wantSeq || ok != tt.wantOK {
			t.Errorf("Resolve(%q, %q) = (%d, %v), want (%d, %v)", tt.sku, tt.name, seq, ok, tt.wantSeq, tt.wantOK)
		}
	}
}

func TestResolverPriorityOrder(t *testing.T) {
	// Both rules match "Box Club Crate"; the lower priority number must win
	// regardless of slice order.
	patterns := []domain.ProductPattern{
		{Pattern: "crate", PatternType: domain.PatternContains, SequenceNumber: 20, Priority: 10, CreatedAt: time.Now()},
		{Pattern: "box club", PatternType: domain.PatternContains, SequenceNumber: 5, Priority: 1, CreatedAt: time.Now()},
	}
	r, err := NewResolver(nil, patterns)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	if seq, ok := r.Resolve("X", "Box Club Crate"); !ok || seq != 5 {
		t.Errorf("Resolve = (%d, %v), want (5, true): priority 1 rule must win", seq, ok)
	}
}

func TestResolverInvalidConfig(t *testing.T) {
	if _, err := NewResolver(nil, []domain.ProductPattern{
		{Pattern: "([", PatternType: domain.PatternRegex, SequenceNumber: 1},
	}); err == nil {
		t.Error("expected error for invalid regex")
	}

	if _, err := NewResolver(nil, []domain.ProductPattern{
		{Pattern: "x", PatternType: "fuzzy", SequenceNumber: 1},
	}); err == nil {
		t.Error("expected error for unknown pattern type")
	}
}
