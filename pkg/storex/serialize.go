package storex

import "encoding/json"

// Serialize normalizes a value for storage. Strings pass through untouched,
// everything else is JSON-encoded.
func Serialize(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", storexErrors.NewWithCause(ErrSerialize, err)
		}
		return string(data), nil
	}
}

// TryParse best-effort-decodes stored text. Invalid JSON comes back as the raw
// string rather than an error.
func TryParse(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
