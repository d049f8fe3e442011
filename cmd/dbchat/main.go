package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/farhanshk/dbchat/internal/ai"
	aitools "github.com/farhanshk/dbchat/internal/ai/tools"
	"github.com/farhanshk/dbchat/internal/config"
	"github.com/farhanshk/dbchat/internal/session"
	"github.com/farhanshk/dbchat/internal/store"
	"github.com/farhanshk/dbchat/internal/userdb"
	"github.com/farhanshk/dbchat/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := userdb.Open(cfg.DataDir + "/dbchat.sqlite")
	if err != nil {
		log.Fatalf("userdb: %v", err)
	}
	defer db.Close()

	if err := db.Seed(context.Background()); err != nil {
		log.Fatalf("userdb: seed: %v", err)
	}

	conversations, err := store.NewBoltStore(cfg.DataDir + "/dbchat.db")
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer conversations.Close()

	model := ai.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	agent := ai.NewAgent(model, aitools.BuildRegistry(db), ai.SystemPrompt, cfg.MaxSteps)
	sessionMgr := session.NewManager()

	// Periodic cleanup of stale per-conversation locks to prevent memory leaks
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			sessionMgr.Cleanup(1 * time.Hour)
		}
	}()

	handler := web.NewHandler(agent, conversations, sessionMgr)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler.Routes(r)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout stays zero: chat responses are long-lived SSE streams
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("dbchat: listening on :%s (model=%s, max steps=%d)", cfg.Port, cfg.OpenAIModel, cfg.MaxSteps)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("dbchat: shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Println("dbchat: stopped")
}
