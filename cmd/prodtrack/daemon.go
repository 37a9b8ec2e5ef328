package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/fentz26/prodtrack/internal/audit"
	"github.com/fentz26/prodtrack/internal/controlplane"
	"github.com/fentz26/prodtrack/internal/events"
	"github.com/fentz26/prodtrack/internal/filetree"
	"github.com/fentz26/prodtrack/internal/logging"
	"github.com/fentz26/prodtrack/internal/store"
)

const shutdownTimeout = 30 * time.Second

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the prodtrack daemon",
	Long:  `Starts the prodtrack daemon which owns the database and serves the HTTP API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides server.listen)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides database.path)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	if configExists {
		logger.Info("loaded config", "path", loadedConfigPath)
	}

	reg, err := filetree.NewRegistry()
	if err != nil {
		return err
	}
	if cfg.FileTree.Dir != "" {
		if err := reg.LoadDir(cfg.FileTree.Dir); err != nil {
			return fmt.Errorf("load file trees: %w", err)
		}
	}
	if !reg.Has(cfg.FileTree.Default) {
		return fmt.Errorf("file_tree.default %q is not a loaded template set", cfg.FileTree.Default)
	}
	for _, name := range reg.Names() {
		set, _ := reg.Get(name)
		for _, warning := range set.Lint() {
			logger.Warn("file tree lint", "tree", name, "warning", warning)
		}
	}

	// One daemon per database.
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another prodtrack daemon is already using " + cfg.Database.Path)
	}
	defer lock.Unlock()

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("closing database connection")
		if err := s.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	bus := events.NewBus(logger)
	sinks := []events.Sink{bus}
	if cfg.Events.LogPath != "" {
		jsonl, err := events.NewJSONLSink(cfg.Events.LogPath)
		if err != nil {
			return err
		}
		defer jsonl.Close()
		sinks = append(sinks, jsonl)
	}
	dispatcher := events.NewDispatcher(s, events.Config{
		PollInterval: cfg.PollInterval(),
		BatchSize:    cfg.Events.BatchSize,
	}, logger, sinks...)

	service := controlplane.NewService(s, audit.NewPDRWriter(s), filetree.NewResolver(reg, cfg.FileTree.Default), controlplane.ServiceOptions{
		Labels: cfg.Workflow.Labels,
		Kicker: dispatcher,
		Logger: logger,
	})
	server := controlplane.NewServer(service, controlplane.ServerOptions{
		Addr:         cfg.Server.Listen,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		Bus:          bus,
		Logger:       logger,
		Version:      version,
	})

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal, initiating graceful shutdown")
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	// Deliver what the last requests committed.
	if _, err := dispatcher.DispatchOnce(shutdownCtx); err != nil {
		logger.Warn("final event dispatch failed", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
