package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/load-curtain-go/capture"
	"github.com/soocke/load-curtain-go/config"
	"github.com/soocke/load-curtain-go/domain/engine"
	"github.com/soocke/load-curtain-go/domain/template"
)

const (
	defaultConfigPath   = "load-curtain.json"
	defaultTemplatesDir = "templates"
)

func main() {
	configPath := defaultConfigPath
	templatesDir := defaultTemplatesDir
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		templatesDir = os.Args[2]
	}

	cfg, err := config.Load(configPath)
	logger := NewLogger(LevelFor(cfg.Debug))
	if err != nil {
		logger.Warn("config load", "path", configPath, "error", err)
	}
	store := config.NewStore(cfg, logger)

	bundle, err := template.LoadBundle(os.DirFS(templatesDir), store.Snapshot())
	if err != nil {
		logger.Error("template bundle", "dir", templatesDir, "error", err)
		os.Exit(1)
	}

	src := capture.NewScreenSource(logger, nil)
	eng := engine.New(logger, store, src, bundle, engine.Sinks{})

	src.Start()
	eng.Start()
	logger.Info("tracking started", "session", eng.Session().ID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	eng.Stop()
	src.Stop()

	sess := eng.Session()
	fmt.Println(sess.RenderTable())
	if err := writeExports(sess); err != nil {
		logger.Error("session export", "error", err)
		os.Exit(1)
	}
	logger.Info("tracking stopped",
		"loads", sess.Count(),
		"total_removed", sess.TotalRemoved(),
	)
}
