//	@title			Galeri API
//	@version		1.0
//	@description	Per-user image gallery backed by Postgres and S3-compatible object storage.
//
//	@host		localhost:8080
//	@BasePath	/api
//
//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						access_token

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/galeri/service/internal/auth"
	"github.com/galeri/service/internal/config"
	"github.com/galeri/service/internal/db"
	"github.com/galeri/service/internal/gallery"
	"github.com/galeri/service/internal/logging"
	appMiddleware "github.com/galeri/service/internal/middleware"
	"github.com/galeri/service/internal/storage"
	"github.com/galeri/service/internal/user"

	_ "github.com/galeri/service/docs/swagger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fallback := logging.New("info", false)
		fallback.Fatal().Err(err).Msg("configuration failed")
	}

	log := logging.New(cfg.LogLevel, !cfg.IsProduction())

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	store, err := storage.NewMinioStorage(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("object storage init failed")
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)

	authSvc := auth.NewService(userRepo, cfg)
	authHandler := auth.NewHandler(authSvc, cfg)

	galleryRepo := gallery.NewRepository(pool)
	gallerySvc := gallery.NewService(galleryRepo, store, log)
	galleryHandler := gallery.NewHandler(gallerySvc)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/login", authHandler.Login)
		r.Post("/signup", authHandler.Signup)

		// Everything else sits behind the credential gate.
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth([]byte(cfg.JWTSecret)))
			r.Post("/logout", authHandler.Logout)
			r.Get("/check-auth", authHandler.CheckAuth)

			r.Get("/gallery", galleryHandler.List)
			r.Post("/upload-images", galleryHandler.Upload)
			r.Put("/gallery/{id}", galleryHandler.Rename)
			r.Delete("/gallery/{id}", galleryHandler.Delete)
			r.Post("/gallery/reorder", galleryHandler.Reorder)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
