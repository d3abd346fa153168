// main.go
// Workscope API: scoped work-order reports and statistics for field service admins.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"workscope/auth"
	"workscope/cache"
	"workscope/config"
	"workscope/db"
	"workscope/fixtures"
	"workscope/handlers"
	"workscope/logger"
	"workscope/middleware"
	"workscope/models"
	"workscope/reports"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.WithModule("main")
	if envErr != nil {
		log.Debug("no .env file found, using system environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	log.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"store":       cfg.Server.Store,
	}).Info("starting workscope API server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hasher := auth.NewHasher(cfg.JWT.BcryptCost)
	store, closeStore, err := openStore(ctx, cfg, hasher)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer closeStore()

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	service := reports.NewService(store, reports.Options{Lookback: cfg.Reports.Lookback()})
	sessions := cache.NewRegistry()

	authHandler := handlers.NewAuthHandler(store, service.Normalizer(), jwtManager, hasher, sessions)
	reportsHandler := handlers.NewReportsHandler(service, sessions, cfg.Reports.PageSize)
	adminHandler := handlers.NewAdminHandler(store, service, hasher, sessions)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.CleanupOldLimiters(ctx, 5*time.Minute)

	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/login", authHandler.Login)
	mux.HandleFunc("/api/refresh", authHandler.RefreshToken)

	authMiddleware := middleware.AuthMiddleware(jwtManager, store, service.Normalizer())
	mux.Handle("/api/logout", authMiddleware(http.HandlerFunc(authHandler.Logout)))

	// Dashboard routes (admins only)
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(middleware.RequireRole(models.RoleAdmin)(h))
	}
	mux.Handle("/api/reports", adminOnly(reportsHandler.List))
	mux.Handle("/api/reports/stats", adminOnly(reportsHandler.Stats))
	mux.Handle("/api/reports/refresh", adminOnly(reportsHandler.Refresh))
	mux.Handle("/api/reports/export", adminOnly(reportsHandler.Export))
	mux.Handle("/api/workers", adminOnly(reportsHandler.Workers))

	mux.Handle("/api/admin/users", adminOnly(adminHandler.CreateUser))
	mux.Handle("POST /api/admin/reports", adminOnly(adminHandler.CreateReport))
	mux.Handle("DELETE /api/admin/reports", adminOnly(adminHandler.DeleteReport))

	handler := middleware.CORSMiddleware(cfg.CORS.AllowedOrigins)(mux)
	handler = rateLimiter.Middleware()(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.WithField("anomalies", service.Normalizer().Anomalies().Snapshot()).Info("server stopped")
}

// openStore returns the configured store and its cleanup function. The memory store is
// seeded from SEED_FILE when set.
func openStore(ctx context.Context, cfg *config.Config, hasher *auth.Hasher) (db.Store, func(), error) {
	if cfg.Server.Store == config.StoreMemory {
		mem := db.NewMemoryDB()
		if cfg.Server.SeedFile != "" {
			f, err := fixtures.Load(cfg.Server.SeedFile)
			if err != nil {
				return nil, nil, err
			}
			n, err := f.Apply(ctx, mem, hasher)
			if err != nil {
				return nil, nil, err
			}
			logger.WithModule("main").WithFields(logrus.Fields{
				"users":     n.Users,
				"companies": n.Companies,
				"reports":   n.Reports,
			}).Info("memory store seeded")
		}
		return mem, func() {}, nil
	}

	fs, err := db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() { fs.Close() }, nil
}

// Health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%d,"version":"1.0.0"}`, time.Now().Unix())
}
