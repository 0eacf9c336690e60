// Package apierr classifies heterogeneous API error/response shapes into
// plain human-readable messages. The upstream genealogy API reports failures
// either as an {"error": "..."} envelope on a 2xx response or as an
// {"message": "..."} body; both must map to one displayable string.
package apierr

// HasErrorField reports whether value is a JSON object that owns an "error"
// key. The key's presence alone signals error framing upstream, even when
// its value is empty, so this must not test the value for truthiness.
func HasErrorField(value any) bool {
	obj, ok := value.(map[string]any)
	if !ok {
		return false
	}
	_, present := obj["error"]
	return present
}

// Resolve extracts a human-readable message from an arbitrary decoded API
// value. It prefers a non-empty string "error" field, then a non-empty
// string "message" field, and falls back to the supplied default. Nil and
// non-object inputs are safe.
func Resolve(value any, fallback string) string {
	obj, ok := value.(map[string]any)
	if !ok {
		return fallback
	}
	if msg, ok := obj["error"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := obj["message"].(string); ok && msg != "" {
		return msg
	}
	return fallback
}
