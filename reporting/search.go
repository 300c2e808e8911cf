package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Matches reports whether the record contains the query as a
// case-insensitive substring of any field, including nested objects and
// arrays. An empty query matches everything. The record is flattened through
// its JSON form so the projection is independent of the storage layer.
func Matches(record interface{}, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(projection(record), query)
}

func projection(record interface{}) string {
	data, err := json.Marshal(record)
	if err != nil {
		return ""
	}

	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return ""
	}

	var sb strings.Builder
	flatten(decoded, &sb)
	return sb.String()
}

func flatten(v interface{}, sb *strings.Builder) {
	switch val := v.(type) {
	case string:
		sb.WriteString(strings.ToLower(val))
		sb.WriteByte(' ')
	case float64:
		// Trim the ".0" json.Unmarshal gives integers.
		s := fmt.Sprintf("%v", val)
		sb.WriteString(s)
		sb.WriteByte(' ')
	case bool:
		fmt.Fprintf(sb, "%v ", val)
	case []interface{}:
		for _, item := range val {
			flatten(item, sb)
		}
	case map[string]interface{}:
		for _, item := range val {
			flatten(item, sb)
		}
	}
}
