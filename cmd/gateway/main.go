package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/remote_browser/internal/api"
	"github.com/dgnsrekt/remote_browser/internal/browser"
	"github.com/dgnsrekt/remote_browser/internal/config"
	"github.com/dgnsrekt/remote_browser/internal/control"
	"github.com/dgnsrekt/remote_browser/internal/gateway"
	"github.com/dgnsrekt/remote_browser/internal/netutil"
	"github.com/dgnsrekt/remote_browser/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("gateway config loaded",
		"bind_addr", cfg.BindAddr,
		"start_url", cfg.StartURL,
		"profile_dir", cfg.ProfileDir,
		"viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight),
		"headless", cfg.Headless,
		"stream_interval_ms", cfg.StreamIntervalMS,
		"port_auto_fallback", cfg.PortAutoFallback,
		"log_level", cfg.LogLevel,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	driver := browser.NewDriver(browser.Config{
		ProfileDir:        cfg.ProfileDir,
		ViewportWidth:     cfg.ViewportWidth,
		ViewportHeight:    cfg.ViewportHeight,
		Headless:          cfg.Headless,
		ScreenshotQuality: cfg.ScreenshotQuality,
	})

	ctrl := control.NewController(control.Config{
		StartURL:       cfg.StartURL,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
	}, control.NewLiveDriver(driver))
	if err := ctrl.Initialize(context.Background()); err != nil {
		slog.Error("controller initialization failed", "error", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	store, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to open snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	gw := gateway.New(ctrl,
		time.Duration(cfg.StreamIntervalMS)*time.Millisecond,
		time.Duration(cfg.AddTabDebounceSecs)*time.Second)

	svc := control.NewService(ctrl, store)
	h := api.NewServer(svc, gw, gw.HandleWS, cfg.StaticDir)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("gateway listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("gateway server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("gateway shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
