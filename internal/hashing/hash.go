package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mmrzaf/taxgen/internal/profile"
)

// HashProfile fingerprints a profile's content. Key order in the source file
// does not matter.
func HashProfile(t *profile.Tree) (string, error) {
	data, err := json.Marshal(canonicalizeParams(t.Raw()))
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func canonicalizeParams(params map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(params))
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		result[k] = canonicalizeValue(params[k])
	}
	return result
}

func canonicalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return canonicalizeParams(val)
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, x := range val {
			m[fmt.Sprint(k)] = x
		}
		return canonicalizeParams(m)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, x := range val {
			out[i] = canonicalizeValue(x)
		}
		return out
	default:
		return val
	}
}
