// Package main is the entry point for the skelviz viewer.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/openkin/skelviz/internal/config"
	"github.com/openkin/skelviz/internal/engine/camera"
	"github.com/openkin/skelviz/internal/engine/window"
	"github.com/openkin/skelviz/internal/logger"
	"github.com/openkin/skelviz/internal/model"
	"github.com/openkin/skelviz/internal/render"
	"github.com/openkin/skelviz/internal/viewer"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== skelviz ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	modelPath, movementPath, capturePath := classifyArgs(flag.Args())
	if modelPath == "" {
		modelPath, err = dialog.File().
			Filter("Model files", "yaml", "yml").
			Title("Open model").
			Load()
		if err != nil {
			if err != dialog.ErrCancelled {
				logger.Error("file dialog failed", zap.Error(err))
			}
			return
		}
	}

	m, err := model.Load(modelPath)
	if err != nil {
		logger.Error("failed to load model", zap.String("path", modelPath), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("model loaded", zap.String("name", m.Name), zap.Int("nq", m.NQ()))

	win, err := window.New(window.Config{
		Title:      "skelviz - " + m.Name,
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		logger.Error("failed to open window", zap.Error(err))
		os.Exit(1)
	}
	defer win.Close()

	cam := camera.New()
	width, height := win.GetSize()
	surface, err := render.NewSurface(width, height, cam)
	if err != nil {
		logger.Error("failed to create render surface", zap.Error(err))
		os.Exit(1)
	}

	v, err := viewer.New(m, surface, cam, cfg, logger.Log)
	if err != nil {
		logger.Error("failed to create viewer", zap.Error(err))
		os.Exit(1)
	}

	if movementPath != "" {
		if err := v.LoadMovementFile(movementPath); err != nil {
			logger.Error("failed to load movement", zap.String("path", movementPath), zap.Error(err))
			os.Exit(1)
		}
	}
	if capturePath != "" {
		if err := v.LoadExperimentalMarkersFile(capturePath); err != nil {
			logger.Error("failed to load capture", zap.String("path", capturePath), zap.Error(err))
			os.Exit(1)
		}
	}

	if err := v.Exec(win); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}

// classifyArgs sorts positional arguments by extension: the model YAML, an
// optional movement file and an optional C3D capture, in any order.
func classifyArgs(args []string) (modelPath, movementPath, capturePath string) {
	for _, arg := range args {
		switch strings.ToLower(filepath.Ext(arg)) {
		case ".yaml", ".yml":
			modelPath = arg
		case ".c3d":
			capturePath = arg
		case ".npy", ".q1", ".q2":
			movementPath = arg
		default:
			fmt.Fprintf(os.Stderr, "Ignoring unrecognized argument: %s\n", arg)
		}
	}
	return modelPath, movementPath, capturePath
}
