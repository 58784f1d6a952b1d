// Package main is the entry point for the videohub server.
//
// All settings come from the environment; see internal/config for the
// variable names and defaults.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/videohub/internal/config"
	"github.com/sakif/videohub/internal/extract"
	"github.com/sakif/videohub/internal/extract/docker"
	"github.com/sakif/videohub/internal/mail"
	"github.com/sakif/videohub/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	for _, dir := range []string{filepath.Dir(cfg.DB.Path), cfg.Documents.UploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	extractor, err := newExtractor(cfg, logger)
	if err != nil {
		logger.Error("failed to start extractor", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger, server.Deps{
		Extractor: extractor,
		Mailer:    mail.NewLogMailer(cfg.Mail.From, logger),
		Output:    os.Stdout,
	})
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM and closes everything it owns.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	// Validate has already rejected an unknown level.
	level, _ := cfg.Server.Level()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Server.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newExtractor picks the in-process reader or the sandboxed pdftotext pool.
func newExtractor(cfg *config.Config, logger *slog.Logger) (extract.Extractor, error) {
	if cfg.Documents.Extractor != "docker" {
		return extract.PDFExtractor{}, nil
	}

	dc := docker.DefaultConfig()
	if cfg.Documents.ExtractorImage != "" {
		dc.Image = cfg.Documents.ExtractorImage
	}
	if cfg.Documents.ExtractorTimeout > 0 {
		dc.Timeout = cfg.Documents.ExtractorTimeout
	}
	if cfg.Documents.ExtractorPool > 0 {
		dc.PoolSize = cfg.Documents.ExtractorPool
	}
	return docker.New(dc, logger)
}
