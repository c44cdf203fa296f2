// Package extract turns free text into sets of structured tokens: generic
// lexical terms, CVE identifiers, and indicators of compromise. All functions
// are pure and safe for concurrent use.
package extract

import (
	"regexp"
	"strings"
)

var (
	tokenPattern = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9._:/-]{2,}\b`)
	cvePattern   = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,}\b`)
	urlPattern   = regexp.MustCompile(`(?i)https?://[^\s]+`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	hashPattern  = regexp.MustCompile(`(?i)\b[a-f0-9]{32,64}\b`)
	// DNS-style names: labels of up to 63 chars that neither start nor end
	// with a hyphen, at least one dot.
	domainPattern = regexp.MustCompile(`(?i)\b[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+\b`)
)

// Tokens returns the lowercased set of generic lexical terms: runs of three
// or more alphanumeric-or-"._:/-" characters.
func Tokens(text string) map[string]struct{} {
	return collect(tokenPattern, text, strings.ToLower)
}

// CVEs returns the uppercased set of CVE identifiers found in text.
func CVEs(text string) map[string]struct{} {
	return collect(cvePattern, text, strings.ToUpper)
}

// IOCs returns the lowercased union of URL, IPv4, hash-like hex, and
// DNS-style domain matches.
func IOCs(text string) map[string]struct{} {
	iocs := make(map[string]struct{})
	for _, p := range []*regexp.Regexp{urlPattern, ipv4Pattern, hashPattern, domainPattern} {
		for _, m := range p.FindAllString(text, -1) {
			iocs[strings.ToLower(m)] = struct{}{}
		}
	}
	return iocs
}

func collect(p *regexp.Regexp, text string, normalize func(string) string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range p.FindAllString(text, -1) {
		out[normalize(m)] = struct{}{}
	}
	return out
}
