// Package misc holds small helpers that do not belong anywhere else yet.
package misc

import "fmt"

// StripUnicode recursively converts map keys to strings, returning a value in which every
// map is a map[string]interface{}. Decoders such as YAML may produce maps keyed by
// interface{}; after this call such data compares equal to decoded JSON.
//
// Values that are not maps are returned as they are, except that slices are walked so that
// maps nested inside lists are converted too.
func StripUnicode(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		ret := make(map[string]interface{}, len(v))
		for k, item := range v {
			ret[k] = StripUnicode(item)
		}
		return ret
	case map[interface{}]interface{}:
		ret := make(map[string]interface{}, len(v))
		for k, item := range v {
			ret[fmt.Sprint(k)] = StripUnicode(item)
		}
		return ret
	case []interface{}:
		ret := make([]interface{}, len(v))
		for i, item := range v {
			ret[i] = StripUnicode(item)
		}
		return ret
	default:
		return value
	}
}
