package cmd

import (
	"context"
	"fmt"

	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/config"
	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/index"
	"github.com/faceattend/faceattend/internal/store/postgres"
	"github.com/faceattend/faceattend/internal/vision"
)

// runtime bundles the pieces the CLI commands share with the server:
// loaded models, database pool, and a ready matching engine.
type runtime struct {
	cfg      *config.Config
	pipeline *vision.Pipeline
	pool     *postgres.Pool
	idents   *postgres.IdentityRepository
	records  *postgres.AttendanceRepository
	engine   *engine.Engine
}

func (rt *runtime) close() {
	rt.pool.Close()
	rt.pipeline.Close()
}

// buildRuntime loads models, connects to PostgreSQL, and seeds the index.
// Metrics are not wired; CLI runs are one-shot.
func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg := config.Load()

	pipeline, err := vision.NewPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load face models: %w", err)
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		pipeline.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		pipeline.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	identRepo := postgres.NewIdentityRepository(pool)
	attRepo := postgres.NewAttendanceRepository(pool)

	ix := index.New(pipeline.Dim())
	if err := ix.Load(ctx, identRepo); err != nil {
		pool.Close()
		pipeline.Close()
		return nil, fmt.Errorf("failed to seed identity index: %w", err)
	}

	matcher := index.NewMatcher(ix, cfg.Match.Threshold)
	ledger := attendance.NewLedger(attRepo)

	return &runtime{
		cfg:      cfg,
		pipeline: pipeline,
		pool:     pool,
		idents:   identRepo,
		records:  attRepo,
		engine:   engine.New(pipeline, identRepo, ix, matcher, ledger, nil),
	}, nil
}
