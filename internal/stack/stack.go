// Package stack models the consumer-supplied technology profile used to
// judge threat relevance.
package stack

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Profile lists the products, platforms, and keywords an organization cares
// about, plus terms to exclude. All four lists are whitespace-trimmed and
// case-insensitively deduplicated, keeping the first-seen display casing.
type Profile struct {
	Products  []string `mapstructure:"products" json:"products"`
	Platforms []string `mapstructure:"platforms" json:"platforms"`
	Keywords  []string `mapstructure:"keywords" json:"keywords"`
	Exclude   []string `mapstructure:"exclude" json:"exclude"`
}

// Normalize trims, drops empties, and deduplicates every list in place.
func (p *Profile) Normalize() {
	p.Products = dedupe(p.Products)
	p.Platforms = dedupe(p.Platforms)
	p.Keywords = dedupe(p.Keywords)
	p.Exclude = dedupe(p.Exclude)
}

// MatchTerms returns the lowercase union of products, platforms, and
// keywords.
func (p *Profile) MatchTerms() map[string]struct{} {
	terms := make(map[string]struct{}, len(p.Products)+len(p.Platforms)+len(p.Keywords))
	for _, list := range [][]string{p.Products, p.Platforms, p.Keywords} {
		for _, v := range list {
			terms[strings.ToLower(v)] = struct{}{}
		}
	}
	return terms
}

// ExcludeTerms returns the lowercase exclusion set.
func (p *Profile) ExcludeTerms() map[string]struct{} {
	terms := make(map[string]struct{}, len(p.Exclude))
	for _, v := range p.Exclude {
		terms[strings.ToLower(v)] = struct{}{}
	}
	return terms
}

// Summary renders the one-line stack description used by the brief header.
func (p *Profile) Summary() string {
	var parts []string
	if len(p.Products) > 0 {
		parts = append(parts, "Products: "+strings.Join(p.Products, ", "))
	}
	if len(p.Platforms) > 0 {
		parts = append(parts, "Platforms: "+strings.Join(p.Platforms, ", "))
	}
	if len(p.Keywords) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(p.Keywords, ", "))
	}
	if len(p.Exclude) > 0 {
		parts = append(parts, "Excluded: "+strings.Join(p.Exclude, ", "))
	}
	if len(parts) == 0 {
		return "No stack profile configured."
	}
	return strings.Join(parts, "; ")
}

// Load reads a stack profile from a YAML file. A missing file is an error; an
// empty file yields an empty profile.
func Load(path string) (*Profile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading stack profile %s: %w", path, err)
	}

	var profile Profile
	if err := v.Unmarshal(&profile); err != nil {
		return nil, fmt.Errorf("parsing stack profile %s: %w", path, err)
	}
	profile.Normalize()
	return &profile, nil
}

// dedupe keeps the first display casing of each case-insensitive value.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		display := strings.TrimSpace(v)
		if display == "" {
			continue
		}
		key := strings.ToLower(display)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, display)
	}
	return out
}
