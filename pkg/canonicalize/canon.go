package canonicalize

import (
	"bytes"
	"encoding/json"
)

// Canonicalize produces the deterministic canonical JSON bytes for v per the
// frozen rule set: camelCase keys in sorted (ordinal) order, no insignificant
// whitespace, no HTML escaping, null-valued properties omitted, integers as
// decimal. A nil v canonicalizes to an empty byte slice.
func Canonicalize(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}

	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(intermediate))
	decoder.UseNumber()
	var generic interface{}
	if err := decoder.Decode(&generic); err != nil {
		return nil, err
	}

	return marshalRecursive(stripNulls(generic))
}

// Hash returns the lowercase-hex SHA-256 digest of data. Empty input
// produces an empty hash string (the canonical-hash identity for "no
// document"), rather than the SHA-256 digest of zero bytes.
func Hash(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return HashBytes(data)
}

// HashObject is Hash(Canonicalize(v)).
func HashObject(v interface{}) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return Hash(b), nil
}

// VerifyHash reports whether Hash(data) equals expected.
func VerifyHash(data []byte, expected string) bool {
	return Hash(data) == expected
}

// stripNulls recursively removes map entries whose value decoded to JSON
// null. Canonical documents never carry explicit nulls: a field that is
// absent and a field that is present-but-null must hash identically.
func stripNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = stripNulls(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = stripNulls(val)
		}
		return out
	default:
		return v
	}
}
