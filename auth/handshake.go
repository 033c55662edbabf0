package auth

import (
	"net/http"
	"strings"
)

// HandshakeFromRequest reads the claimed user and the token of an upgrade request.
// The token comes from the standard "Bearer <token>" header, or from the "token"
// query parameter since browsers cannot set headers on a websocket.
func HandshakeFromRequest(r *http.Request) HandshakeRequest {
	query := r.URL.Query()
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if token == "" {
		token = query.Get("token")
	}
	return HandshakeRequest{UserID: query.Get("userId"), Token: token}
}
