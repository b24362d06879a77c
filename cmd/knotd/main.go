// Command knotd runs the package registry's HTTP server.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slowlime/knotd/internal/api"
	"github.com/slowlime/knotd/internal/auth"
	"github.com/slowlime/knotd/internal/config"
	"github.com/slowlime/knotd/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "knotd ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer st.Close()

	minter := auth.NewMinter([]byte(cfg.JWTSecret), cfg.TokenTTL)
	srv := api.New(cfg, st, minter, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Printf("shutting down...")
	_ = httpSrv.Close()
}
