package observability

import (
	"net/http"

	"nhooyr.io/websocket"
)

// Handler returns an http.HandlerFunc suitable for mounting at a
// dashboard route (e.g. "/observability/stream") on the webhook
// receiver's chi router.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		h.Accept(r.Context(), conn)
	}
}
