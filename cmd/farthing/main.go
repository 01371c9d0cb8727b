package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mpaulsen/farthing/internal/database"
	"github.com/mpaulsen/farthing/internal/logging"
	"github.com/mpaulsen/farthing/internal/photo"
	"github.com/mpaulsen/farthing/internal/push"
	"github.com/mpaulsen/farthing/internal/server"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate VAPID keys:", err)
			os.Exit(1)
		}
		fmt.Printf("FARTHING_VAPID_PUBLIC_KEY=%s\nFARTHING_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	// Missing .env is fine; real deployments set the environment directly.
	godotenv.Load()

	logger := logging.Setup(env("FARTHING_LOG_LEVEL", "info"))

	port := env("FARTHING_PORT", "8080")
	dbPath := env("FARTHING_DB_PATH", "farthing.db")

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		BaseURL:     env("FARTHING_BASE_URL", "http://localhost:"+port),
		TokenSecret: os.Getenv("FARTHING_TOKEN_SECRET"),
		Photo: photo.Config{
			Endpoint:      os.Getenv("FARTHING_S3_ENDPOINT"),
			Bucket:        os.Getenv("FARTHING_S3_BUCKET"),
			Region:        env("FARTHING_S3_REGION", "us-east-1"),
			AccessKey:     os.Getenv("FARTHING_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("FARTHING_S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("FARTHING_S3_PUBLIC_URL"),
		},
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("FARTHING_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("FARTHING_VAPID_PRIVATE_KEY"),
		},
		EmailToken: os.Getenv("FARTHING_POSTMARK_TOKEN"),
		EmailFrom:  env("FARTHING_EMAIL_FROM", "hello@farthing.family"),
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Printf("Farthing running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// Housekeeping: expired sessions and stale rate-limit windows.
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Warn("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("session cleanup", "deleted", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
