package geometry

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Default candidate property keys, tried in order.
var (
	DistrictNameKeys = []string{"DISTRICT", "name"}
	MouzaNameKeys    = []string{"MOUZA_NAME", "name"}
)

// ResolveName returns the first present, non-empty value among keys.
// Numeric values are formatted; anything else is ignored. An empty result
// means the feature has no resolvable name.
func ResolveName(props map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := props[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch x := v.(type) {
		case string:
			s = x
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		case int:
			s = strconv.Itoa(x)
		case int64:
			s = strconv.FormatInt(x, 10)
		case json.Number:
			s = x.String()
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
