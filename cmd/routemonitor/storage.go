package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCAP2/routemonitor/internal/api"
	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/internal/storage"
	"github.com/OCAP2/routemonitor/pkg/core"
)

func (a *app) initStorage() error {
	storageCfg := config.GetStorageConfig()
	plane := config.GetPipelineConfig(core.RolePlane)

	backend, err := storage.NewBackend(storageCfg, storage.Dependencies{
		Logger:   a.logger.With("component", "storage"),
		ZLogger:  a.zlog,
		DataDir:  config.GetString("logsDir"),
		Settings: sessionSettings(plane, a.motion.Enabled()),
		Influx:   config.GetInfluxConfig(),
	})
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.backend = backend

	a.session = &core.Session{
		Name:      config.GetString("sessionName"),
		Tag:       config.GetString("defaultTag"),
		StartTime: a.startTime,
		Frame:     a.projector.Target(),
		Capacity:  plane.Capacity,
	}
	if err := backend.StartSession(a.session); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	a.logger.Info("Storage initialized", "types", storageCfg.Types, "session", a.session.Name)
	return nil
}

// endSession closes the recording and uploads its export when configured.
func (a *app) endSession(ctx context.Context) error {
	var errs []error
	if err := a.backend.EndSession(); err != nil {
		a.logger.Error("Failed to end session", "error", err)
		errs = append(errs, err)
	}

	if config.GetBool("api.upload") {
		if err := a.upload(ctx); err != nil {
			a.logger.Error("Failed to upload recording", "error", err)
			errs = append(errs, err)
		}
	}

	if err := a.backend.Close(); err != nil {
		a.logger.Error("Failed to close storage backend", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *app) upload(ctx context.Context) error {
	u, ok := storage.FindUploadable(a.backend)
	if !ok {
		a.logger.Warn("Upload enabled but no storage backend produces an export")
		return nil
	}
	path := u.GetExportedFilePath()
	if path == "" {
		return fmt.Errorf("no export was written")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	if err := client.Upload(ctx, path, u.GetExportMetadata()); err != nil {
		return err
	}
	a.logger.Info("Uploaded recording", "path", path)
	return nil
}
