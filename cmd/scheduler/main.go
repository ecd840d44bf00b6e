// Command scheduler runs the Scheduler/Reaper control loop (C5,
// spec.md §4.5). With no arguments it runs a single Pass and exits.
// Given a single integer argument it seeds that many dev jobs instead
// (C8, spec.md §4.8). A "daemon" subcommand runs the pass in a
// sleep loop as a supervised OS service, via kardianos/service. It is
// grounded on the teacher's cmd/server main.go for config/logger
// bootstrap and on the CLI conventions spf13/cobra establishes across
// the retrieval pack.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/ikretus/asr/internal/config"
	"github.com/ikretus/asr/internal/scheduler"
	"github.com/ikretus/asr/internal/seed"
	"github.com/ikretus/asr/internal/store"
	"github.com/ikretus/asr/pkg/logger"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "scheduler [n]",
		Short: "Run one scheduler pass, or seed n dev jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("argument must be an integer job count: %w", err)
				}
				return runSeed(n)
			}
			return runPass()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to JSON config file")
	root.AddCommand(daemonCmd())

	if err := root.Execute(); err != nil {
		logger.Error("task", "scheduler exited with error", err)
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(os.Getenv("LOG_LEVEL"))

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)
	st, err := store.Open(dsn, cfg.Table)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if cfg.CreateTable {
		if err := st.EnsureTable(context.Background()); err != nil {
			return nil, nil, fmt.Errorf("ensure table: %w", err)
		}
	}
	return cfg, st, nil
}

func runPass() error {
	cfg, st, err := bootstrap()
	if err != nil {
		return err
	}
	defer st.(*store.SQLStore).Close()

	s := scheduler.New(cfg, st)
	return s.RunOnce(context.Background())
}

func runSeed(n int) error {
	cfg, st, err := bootstrap()
	if err != nil {
		return err
	}
	defer st.(*store.SQLStore).Close()

	return seed.Seed(context.Background(), st, cfg, n)
}

// daemonCmd wraps the pass loop in a kardianos/service Program so the
// scheduler can run as a long-lived OS service instead of a cron
// entry, for deployments that prefer one over the other.
func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler pass in a sleep loop as an OS service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := bootstrap()
			if err != nil {
				return err
			}
			defer st.(*store.SQLStore).Close()

			prg := &daemonProgram{cfg: cfg, sched: scheduler.New(cfg, st)}
			svcConfig := &service.Config{
				Name:        "asr-scheduler",
				DisplayName: "ASR Scheduler",
				Description: "Runs the speech-recognition job scheduler control loop.",
			}
			svc, err := service.New(prg, svcConfig)
			if err != nil {
				return fmt.Errorf("create service: %w", err)
			}
			return svc.Run()
		},
	}
}

type daemonProgram struct {
	cfg   *config.Config
	sched *scheduler.Scheduler
	cancel context.CancelFunc
}

func (p *daemonProgram) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() {
		if err := scheduler.RunDaemon(ctx, p.cfg, p.sched); err != nil {
			logger.Error("task", "daemon loop exited with error", err)
		}
	}()
	return nil
}

func (p *daemonProgram) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
