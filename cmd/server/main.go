// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/contentstore"
	"github.com/javajoker/vidmarket-backend/internal/database"
	"github.com/javajoker/vidmarket-backend/internal/i18n"
	"github.com/javajoker/vidmarket-backend/internal/ledger"
	"github.com/javajoker/vidmarket-backend/internal/router"
	"github.com/javajoker/vidmarket-backend/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	setupLogging(cfg.Log)

	// Initialize persistence
	var gateway store.Gateway
	if cfg.Database.Driver == "memory" {
		logrus.Warn("Using in-memory persistence, data is lost on restart")
		gateway = store.NewMemoryStore()
	} else {
		db, err := database.Initialize(cfg.Database)
		if err != nil {
			log.Fatal("Failed to initialize database:", err)
		}
		defer database.Close(db)

		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(db); err != nil {
				log.Fatal("Failed to run migrations:", err)
			}
		}
		gateway = store.NewGormStore(db)
	}

	content, err := buildContentRouter(cfg)
	if err != nil {
		log.Fatal("Failed to initialize content store:", err)
	}

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.LocalesPath, cfg.I18n.DefaultLocale); err != nil {
		log.Fatal("Failed to initialize i18n:", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(router.Dependencies{
		Gateway: gateway,
		Ledger:  ledger.NewHTTPClient(cfg.Ledger.RPCURL, cfg.Ledger.Timeout()),
		Content: content,
		Config:  cfg,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":          cfg.Server.Port,
			"environment":   cfg.Environment,
			"content_store": cfg.ContentStore.Backend,
			"database":      cfg.Database.Driver,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// buildContentRouter makes the configured backend the write target and
// keeps every other reachable backend readable, so assets registered
// before a backend switch still stream.
func buildContentRouter(cfg *config.Config) (*contentstore.Router, error) {
	timeout := cfg.ContentStore.Timeout()

	var primary contentstore.Store
	var others []contentstore.Store

	switch cfg.ContentStore.Backend {
	case "cas":
		primary = contentstore.NewCASClient(cfg.ContentStore.URL, cfg.ContentStore.APIToken, timeout)
	case "s3":
		s3Store, err := contentstore.NewS3Store(cfg.AWS, timeout)
		if err != nil {
			return nil, err
		}
		primary = s3Store
	default:
		primary = contentstore.NewMemoryStore()
	}

	if cfg.ContentStore.Backend != "cas" && cfg.ContentStore.URL != "" {
		others = append(others, contentstore.NewCASClient(cfg.ContentStore.URL, cfg.ContentStore.APIToken, timeout))
	}
	if cfg.ContentStore.Backend != "s3" && cfg.AWS.AccessKeyID != "" {
		s3Store, err := contentstore.NewS3Store(cfg.AWS, timeout)
		if err != nil {
			return nil, err
		}
		others = append(others, s3Store)
	}

	router := contentstore.NewRouter(primary, others...)
	if hosts := cfg.ContentStore.URLHosts; len(hosts) > 0 {
		router.WithURLFetcher(contentstore.NewURLFetcher(timeout, cfg.Streaming.UploadMaxBytes, hosts))
		logrus.WithField("hosts", hosts).Info("External video URLs enabled")
	}
	return router, nil
}
