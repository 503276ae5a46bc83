package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// upgrader acepta cualquier origen — el propio handshake ya exige el JWT
// de sesión vía query param, gin no tiene forma de inyectar el header
// Authorization en un cliente WebSocket de navegador.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type statusMessage struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	At     string `json:"at"`
}

// handleWSStatus sirve el único canal WebSocket del sistema: al conectar
// envía una foto de Supervisor.Status(), luego reenvía cada transición de
// Supervisor.Subscribe() hasta que el cliente se desconecta.
func (s *Server) handleWSStatus(c *gin.Context) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(c.Query("token"), claims, func(t *jwt.Token) (any, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	snapshot := s.supervisor.Status()
	for key, status := range snapshot {
		msg := statusMessage{Key: key.UserAddress + ":" + string(key.Kind), Status: string(status)}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}

	events, cancel := s.supervisor.Subscribe()
	defer cancel()

	// Drena los mensajes entrantes del cliente (pings/cierre) en una
	// goroutine aparte, como exige la API de gorilla/websocket — sólo una
	// goroutine puede leer del conn a la vez.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := statusMessage{
				Key:    ev.Key.UserAddress + ":" + string(ev.Key.Kind),
				Status: string(ev.Status),
				At:     ev.At.UTC().Format("2006-01-02T15:04:05Z"),
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
