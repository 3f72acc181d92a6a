// Package health serves the liveness endpoints hosting platforms poll.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/psychoticproxy/heidi/pkg/logger"
)

// Server is a minimal liveness HTTP server running beside the bot.
type Server struct {
	srv *http.Server
}

func NewServer(host string, port int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Bot is running!")
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves on its own goroutine until Stop.
func (s *Server) Start() {
	go func() {
		logger.InfoCF("health", "liveness server listening", map[string]any{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("health", "liveness server failed", map[string]any{"error": err.Error()})
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
