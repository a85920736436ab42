package code

import (
	"fmt"
	"net/url"
)

// Binding renders the shareable check-in link for a session's current code.
// The frontend displays it as a QR payload; scanning lands the student on the
// check-in page with the code pre-filled. Deterministic given its inputs, so
// callers regenerate it on every rotation.
func Binding(baseURL, sessionPublicID, code string) string {
	return fmt.Sprintf("%s/courses?sessao=%s&codigo=%s",
		baseURL, url.QueryEscape(sessionPublicID), url.QueryEscape(code))
}
