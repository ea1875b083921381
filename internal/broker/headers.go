package broker

import (
	"sort"
	"strings"
)

// ParseHeaders splits the "k: v" per-line storage format back into a
// map.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers
}

// FormatHeaders joins a header map into the "k: v" per-line storage
// format, sorted for deterministic persistence.
func FormatHeaders(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
	}
	return b.String()
}

// StripRocktickHeaders drops any header whose name starts with
// "Rocktick-" (case-insensitive): caller-supplied Rocktick-* headers
// never reach storage of the actual sent request.
func StripRocktickHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.HasPrefix(strings.ToLower(k), "rocktick-") {
			continue
		}
		out[k] = v
	}
	return out
}
