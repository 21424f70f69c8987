package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"diet-coach/internal/config"
	"diet-coach/internal/database"
	"diet-coach/internal/dietplan"
	"diet-coach/internal/extraction"
	"diet-coach/internal/llm"
	"diet-coach/internal/metrics"
	"diet-coach/internal/storage"

	"go.uber.org/zap"
)

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db        *database.DB
	vision    llm.VisionGenerator
	extractor *extraction.Extractor
	plans     *dietplan.Repository
	uploads   *storage.ImageStore
	metrics   *metrics.Store
}

// New opens the database, the upload store and the configured model
// backend, and wires the extraction pipeline on top of them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	vision, err := llm.NewVisionGenerator(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision model client: %w", err)
	}
	a, err := newApp(cfg, vision, logger)
	if err != nil {
		closeVision(vision)
		return nil, err
	}
	return a, nil
}

func newApp(cfg *config.Config, vision llm.VisionGenerator, logger *zap.Logger) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	uploads, err := storage.NewImageStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		vision:    vision,
		extractor: extraction.NewExtractor(vision, logger.Named("extraction")),
		plans:     dietplan.NewRepository(db.SQL),
		uploads:   uploads,
		metrics:   metrics.NewStore(db.SQL),
	}, nil
}

// Extractor returns the extraction pipeline.
func (a *App) Extractor() *extraction.Extractor { return a.extractor }

// Plans returns the plan repository.
func (a *App) Plans() *dietplan.Repository { return a.plans }

// Uploads returns the temporary upload store.
func (a *App) Uploads() *storage.ImageStore { return a.uploads }

// Metrics returns the usage metrics store.
func (a *App) Metrics() *metrics.Store { return a.metrics }

// DataDir returns the directory holding the database.
func (a *App) DataDir() string { return filepath.Dir(a.cfg.DatabasePath) }

// SweepUploads removes temporary uploads older than maxAge.
func (a *App) SweepUploads(maxAge time.Duration) {
	n, err := a.uploads.RemoveStale(maxAge)
	if err != nil {
		a.logger.Warn("failed to sweep stale uploads", zap.Error(err))
		return
	}
	if n > 0 {
		a.logger.Info("removed stale uploads", zap.Int("count", n))
	}
}

// Close releases the model client and the database.
func (a *App) Close() error {
	closeVision(a.vision)
	return a.db.Close()
}

func closeVision(v llm.VisionGenerator) {
	if c, ok := v.(llm.Closer); ok {
		_ = c.Close()
	}
}

// errUnknownImageType is returned for local files whose extension does not
// map to an accepted image type.
var errUnknownImageType = errors.New("unknown image type")
