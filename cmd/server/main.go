// Command server runs the HTTP ingress/query surface (C6, C7) as a
// long-lived gin process, with live config reload via fsnotify (the
// one consumer of internal/config.Watch; the scheduler only ever
// reads the file once per invocation).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/ikretus/asr/internal/config"
	"github.com/ikretus/asr/internal/ingress"
	"github.com/ikretus/asr/internal/query"
	"github.com/ikretus/asr/internal/store"
	"github.com/ikretus/asr/internal/transcode"
	"github.com/ikretus/asr/pkg/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.json", "path to JSON config file")
	addr := pflag.StringP("addr", "a", ":8080", "HTTP listen address")
	pflag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetGinOutput()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("task", "failed to load config", err)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)
	st, err := store.Open(dsn, cfg.Table)
	if err != nil {
		logger.Error("task", "failed to open store", err)
		os.Exit(1)
	}
	defer st.Close()
	if cfg.CreateTable {
		if err := st.EnsureTable(context.Background()); err != nil {
			logger.Error("task", "failed to ensure table", err)
			os.Exit(1)
		}
	}

	if err := config.Watch(*configPath, func(next *config.Config) { *cfg = *next }); err != nil {
		logger.Warn("task", "config live-reload disabled", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(logger.GinLogger(), gin.Recovery())

	tc := transcode.New("ffmpeg")
	ingress.New(st, cfg, tc).Register(r)
	query.New(st, cfg).Register(r)

	srv := &http.Server{Addr: *addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("task", "server exited with error", err)
		}
	}()
	logger.Info("task", fmt.Sprintf("listening on %s", *addr))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
