package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/faceattend/faceattend/internal/admin"
	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/config"
	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/index"
	"github.com/faceattend/faceattend/internal/metrics"
	"github.com/faceattend/faceattend/internal/store/postgres"
	"github.com/faceattend/faceattend/internal/vision"
	"github.com/faceattend/faceattend/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the FaceAttend web server.
Loads the detection and embedding models, seeds the in-memory identity
index from PostgreSQL, and serves the kiosk and admin API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides HTTP_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides HTTP_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}

	fmt.Println("Loading face models...")
	pipeline, err := vision.NewPipeline(cfg)
	if err != nil {
		return fmt.Errorf("failed to load face models: %w", err)
	}
	defer pipeline.Close()

	fmt.Println("Connecting to PostgreSQL...")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	identRepo := postgres.NewIdentityRepository(pool)
	attRepo := postgres.NewAttendanceRepository(pool)
	adminRepo := postgres.NewAdminRepository(pool)

	ix := index.New(pipeline.Dim())
	if err := ix.Load(ctx, identRepo); err != nil {
		return fmt.Errorf("failed to seed identity index: %w", err)
	}
	fmt.Printf("Identity index seeded with %d identities\n", ix.Len())

	matcher := index.NewMatcher(ix, cfg.Match.Threshold)
	ledger := attendance.NewLedger(attRepo)
	m := metrics.New()

	adminSvc := admin.NewService(
		adminRepo,
		cfg.Auth.JWTSigningKey,
		cfg.Auth.JWTIssuer,
		time.Duration(cfg.Auth.AccessTTLMin)*time.Minute,
	)

	eng := engine.New(pipeline, identRepo, ix, matcher, ledger, m)

	server := web.NewServer(cfg, web.Deps{
		Engine:     eng,
		Identities: identRepo,
		Records:    attRepo,
		Admins:     adminSvc,
		Metrics:    m,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
