package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"dmchat/internal/server"
)

// serveWs authenticates and upgrades a websocket connection, then binds it
// into the broadcaster's subscriber set. The credential arrives as a query
// parameter because browsers cannot set headers on websocket requests; it
// is verified by the same token check as the HTTP middleware.
func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	identity, err := s.verifyToken(tokenString)
	if err != nil {
		s.log.Printf("failed to verify token: %v", err)
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	connId, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(connId, identity, conn, s.broadcaster, s.chat, s.log)

	s.broadcaster.RegisterClient(client)
	go client.Write()
	go client.Read()
}
