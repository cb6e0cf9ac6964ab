package server

import (
	"context"
	"net/http"
	"time"

	appkafka "example.com/tuitergraph/internal/broker"
	"example.com/tuitergraph/internal/logger"
	"example.com/tuitergraph/internal/middleware"
	"example.com/tuitergraph/internal/relations"
	"example.com/tuitergraph/internal/store"
)

type Server struct {
	store       store.StoreInterface
	relations   *relations.Service
	kafkaWriter appkafka.KafkaWriter
}

var logg = logger.New()

// Run starts the HTTPS server with JWT-protected routes and graceful shutdown.
func Run(ctx context.Context, st store.StoreInterface, svc *relations.Service, writer appkafka.KafkaWriter, addr string) {
	s := &Server{
		store:       st,
		relations:   svc,
		kafkaWriter: writer,
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		logg.Info("server", "Starting HTTPS server on "+addr)
		// TLS: cert.pem and key.pem should be valid certificates in specified paths
		if err := srv.ListenAndServeTLS("/certs/cert.pem", "/certs/key.pem"); err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}

// routes wires the relation surface. Every route except registration is
// JWT-protected; the acting user always comes from the token.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Public endpoint for user registration (no JWT required)
	mux.Handle("/users", http.HandlerFunc(s.createUserHandler))

	protected := map[string]http.HandlerFunc{
		"/tuits":             s.tuitsHandler,
		"/follows":           s.followsHandler,
		"/following":         s.followingHandler,
		"/followers":         s.followersHandler,
		"/reactions":         s.reactionsHandler,
		"/likes":             s.likesHandler,
		"/liked":             s.likedHandler,
		"/dislikes":          s.dislikesHandler,
		"/disliked":          s.dislikedHandler,
		"/counts":            s.countsHandler,
		"/bookmarks":         s.bookmarksHandler,
		"/bookmarks/all":     s.clearBookmarksHandler,
		"/bookmarkers":       s.bookmarkersHandler,
		"/messages":          s.messagesHandler,
		"/messages/sent":     s.sentMessagesHandler,
		"/messages/received": s.receivedMessagesHandler,
		"/account":           s.accountHandler,
	}
	for path, h := range protected {
		mux.Handle(path, middleware.JWTAuth(h))
	}

	return mux
}
