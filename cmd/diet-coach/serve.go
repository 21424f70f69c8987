package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"diet-coach/internal/server"
)

const (
	uploadMaxAge        = 24 * time.Hour
	uploadSweepInterval = time.Hour
)

var (
	serveHost      string
	servePort      string
	extractTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the diet-coach HTTP API.

Endpoints:
  GET  /health                              - Service and storage health
  POST /api/v1/meal/new                     - Extract a plan from uploaded images
  GET  /api/v1/meal/history/{clientId}      - Plans stored for a client
  GET  /api/v1/meal/plans/{id}              - One stored plan
  GET  /api/v1/meal/plans/{id}/table        - One stored plan as an HTML table
  GET  /api/v1/metrics/usage?days=7         - Daily model usage

Examples:
  diet-coach serve                    # Listen on PORT (default 8080)
  diet-coach serve --port 3000        # Listen on a custom port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		port := servePort
		if port == "" {
			port = cfg.Port
		}

		srv, err := server.New(server.Config{
			Host:            serveHost,
			Port:            port,
			Extractor:       a.Extractor(),
			Plans:           a.Plans(),
			Uploads:         a.Uploads(),
			Usage:           a.Metrics(),
			Auth:            server.NewAuthenticator(cfg.AuthJWTSecret),
			MaxUploadImages: cfg.MaxUploadImages,
			MaxUploadBytes:  cfg.MaxUploadBytes,
			ExtractTimeout:  extractTimeout,
			DataDir:         a.DataDir(),
			Logger:          logger.Named("server"),
		})
		if err != nil {
			return err
		}

		// Uploads orphaned by a crash are cleared at boot and then hourly.
		a.SweepUploads(uploadMaxAge)
		go func() {
			ticker := time.NewTicker(uploadSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					a.SweepUploads(uploadMaxAge)
				}
			}
		}()

		logger.Info("starting diet-coach",
			zap.String("provider", cfg.ExtractionProvider),
			zap.String("database", cfg.DatabasePath))
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: all interfaces)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: PORT or 8080)")
	serveCmd.Flags().DurationVar(&extractTimeout, "extract-timeout", 2*time.Minute, "Upper bound for one extraction")
}
