package normalize

import (
	"strconv"
	"strings"
	"time"
)

// Payload is a deserialized source record. Source feeds return arbitrary
// optional fields, so every accessor below tolerates absent or oddly-typed
// values and returns a zero value instead of failing.
type Payload = map[string]any

// timeLayouts are tried in order when parsing heterogeneous source
// timestamps. Parse failure is never fatal; the field is simply absent.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func stringField(p Payload, keys ...string) string {
	for _, key := range keys {
		if s := toString(p[key]); s != "" {
			return s
		}
	}
	return ""
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// timeField parses the first usable timestamp among keys. Returns nil when
// nothing parses.
func timeField(p Payload, keys ...string) *time.Time {
	for _, key := range keys {
		if t := parseTime(p[key]); t != nil {
			return t
		}
	}
	return nil
}

func parseTime(v any) *time.Time {
	switch val := v.(type) {
	case time.Time:
		return &val
	case string:
		text := strings.TrimSpace(val)
		if text == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return &t
			}
		}
	}
	return nil
}

// severityField parses the first numeric severity among keys. Values outside
// [0,10] are discarded, not clamped.
func severityField(p Payload, keys ...string) *float64 {
	for _, key := range keys {
		if s := parseSeverity(p[key]); s != nil {
			return s
		}
	}
	return nil
}

func parseSeverity(v any) *float64 {
	var parsed float64
	switch val := v.(type) {
	case float64:
		parsed = val
	case int:
		parsed = float64(val)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		parsed = f
	default:
		return nil
	}
	if parsed < 0 || parsed > 10 {
		return nil
	}
	return &parsed
}

// stringList coerces a payload value into trimmed strings, tolerating mixed
// element types. Decoded JSON yields []any; payloads built by the feed
// clients carry []string directly.
func stringList(v any) []string {
	switch items := v.(type) {
	case []string:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// unique deduplicates case-sensitively, keeping the first occurrence and
// dropping empties.
func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
