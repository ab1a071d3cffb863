package metrics

import "strings"

// normalizeLabel keeps label cardinality bounded to names the code chose;
// blank values collapse into "unknown".
func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
