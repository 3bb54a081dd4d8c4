// Package main runs the jour web server, a personal journal backed by a
// CalDAV collection with a local full-text searchable cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kimhsiao/jour/internal/db"
	"github.com/kimhsiao/jour/internal/logging"
	"github.com/kimhsiao/jour/internal/settings"
)

func main() {
	var (
		port     int
		dataDir  string
		logLevel string
	)
	flag.IntVar(&port, "port", 8080, "the port to start the web server on")
	flag.StringVar(&dataDir, "data-dir", defaultDataDir(), "directory holding the journal database")
	flag.StringVar(&logLevel, "log-level", "INFO", "minimum log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	logging.Init(os.Stdout, logging.LogLevel(logLevel))
	log := logging.Get().With("main")

	database, err := db.Open(dataDir)
	if err != nil {
		log.Error("open database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		log.Error("run migrations", err)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)
	store := settings.NewStore(repo)

	server, err := newServer(repo, store)
	if err != nil {
		log.Error("build server", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		s := <-sigint

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		log.Info("shutting down", map[string]interface{}{"signal": s.String()})
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server shutdown", err)
		}
		close(idleConnsClosed)
	}()

	log.Info("jour listening", map[string]interface{}{"port": port, "data_dir": dataDir})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("server stopped", err)
		os.Exit(1)
	}

	<-idleConnsClosed
}

func defaultDataDir() string {
	if dir := os.Getenv("JOUR_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}
