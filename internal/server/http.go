// Package server exposes the live ride snapshot over HTTP and a
// websocket stream.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/TheItalianDataGuy/tdf-data-bridge/internal/bridge"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// streamInterval is how often a connected websocket client gets a
// fresh snapshot.
const streamInterval = 250 * time.Millisecond

type Server struct {
	bridge *bridge.Bridge
	port   int
}

func New(b *bridge.Bridge, port int) *Server {
	return &Server{bridge: b, port: port}
}

// Start blocks serving the status endpoints.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.handleWebSocket)

	log.Printf("[HTTP] status interface at http://localhost:%d", s.port)
	return http.ListenAndServe(fmt.Sprintf(":%d", s.port), r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.bridge.Snapshot()); err != nil {
		log.Printf("[HTTP] status encode failed: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Drain the read side so pings and closes are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.bridge.Snapshot()); err != nil {
				return
			}
		}
	}
}
