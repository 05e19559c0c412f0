package audit

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cratecrew/boxops/internal/domain"
)

// Resolver translates a raw SKU / product name into a box sequence number.
//
// Resolution order: exact case-insensitive SkuAlias match first, then
// ProductPattern rules in ascending priority order, first match wins. A SKU
// matching multiple patterns resolves via the lowest-priority rule, not the
// best match — determinism over cleverness.
//
// A Resolver is built once per migration run and is immutable afterwards, so
// concurrent reads from multiple subscriber analyses are safe.
type Resolver struct {
	aliases  map[string]int
	patterns []compiledPattern
}

type compiledPattern struct {
	pattern  string
	kind     domain.PatternType
	sequence int
	re       *regexp.Regexp // non-nil only for regex rules
}

// NewResolver compiles alias and pattern rules into a Resolver. Pattern rules
// are ordered by (priority, created_at) regardless of input order. An invalid
// regex or an unknown pattern type is a configuration error and fails the
// whole build rather than silently skipping the rule.
func NewResolver(aliases []domain.SkuAlias, patterns []domain.ProductPattern) (*Resolver, error) {
	r := &Resolver{aliases: make(map[string]int, len(aliases))}

	for _, a := range aliases {
		key := strings.ToLower(strings.TrimSpace(a.RawSKU))
		if key == "" {
			continue
		}
		r.aliases[key] = a.SequenceNumber
	}

	ordered := make([]domain.ProductPattern, len(patterns))
	copy(ordered, patterns)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for _, p := range ordered {
		cp := compiledPattern{
			pattern:  strings.ToLower(p.Pattern),
			kind:     p.PatternType,
			sequence: p.SequenceNumber,
		}
		switch p.PatternType {
		case domain.PatternContains, domain.PatternPrefix:
		case domain.PatternRegex:
			re, err := regexp.Compile("(?i)" + p.Pattern)
			if err != nil {
				return nil, fmt.Errorf("compile pattern %q: %w", p.Pattern, err)
			}
			cp.re = re
		default:
			return nil, fmt.Errorf("unknown pattern type %q", p.PatternType)
		}
		r.patterns = append(r.patterns, cp)
	}

	return r, nil
}

// AliasCount returns the number of exact SKU aliases loaded.
func (r *Resolver) AliasCount() int { return len(r.aliases) }

// Resolve returns the sequence number for a raw SKU / product name, or
// ok=false when no alias or pattern rule matches.
func (r *Resolver) Resolve(rawSKU, rawProductName string) (int, bool) {
	if seq, ok := r.aliases[strings.ToLower(strings.TrimSpace(rawSKU))]; ok {
		return seq, true
	}

	sku := strings.ToLower(rawSKU)
	name := strings.ToLower(rawProductName)

	for _, p := range r.patterns {
		switch p.kind {
		case domain.PatternContains:
			if p.pattern != "" && strings.Contains(name, p.pattern) {
				return p.sequence, true
			}
		case domain.PatternPrefix:
			if p.pattern != "" && strings.HasPrefix(sku, p.pattern) {
				return p.sequence, true
			}
		case domain.PatternRegex:
			if p.re.MatchString(rawProductName) {
				return p.sequence, true
			}
		}
	}

	return 0, false
}
