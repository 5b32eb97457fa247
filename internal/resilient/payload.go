package resilient

import (
	"bytes"
	"encoding/json"
)

// ValidPayload reports whether raw looks like a Reddit response: an object
// with a non-null "data" member, or a non-empty array.
func ValidPayload(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}

	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return false
		}
		data, ok := obj["data"]
		return ok && !bytes.Equal(bytes.TrimSpace(data), []byte("null"))
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return false
		}
		return len(arr) > 0
	}
	return false
}
