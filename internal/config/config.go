// Package config loads the JSON configuration file spec.md §6 names,
// using viper the way the teacher loads its own settings, with
// fsnotify-driven live reload for the long-running HTTP server.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ikretus/asr/pkg/logger"
)

// Config mirrors every key spec.md §6 recognizes, plus the ambient
// operational knobs (DataRoot, SleepSec, FetchMany, LockFile) the
// distilled spec assumes a source for but never names one.
type Config struct {
	// Database connection + target table.
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Table    string `mapstructure:"table"`

	// Seeder + engine inputs.
	SampleDir string `mapstructure:"sample_dir"`
	ModelDir  string `mapstructure:"model_dir"`
	Whisper   string `mapstructure:"whisper"`

	// Engine parallelism knobs. NThread also indexes the budget table
	// and must be 1 or 2 (spec.md §4.3).
	NProc   int `mapstructure:"n_proc"`
	NThread int `mapstructure:"n_thread"`

	MaxCPU          int     `mapstructure:"max_cpu"`
	TTLCoef         float64 `mapstructure:"ttl_coef"`
	WavMinSize      int64   `mapstructure:"wav_min_size"`
	OutputJSONFull  bool    `mapstructure:"output_json_full"`
	CreateTable     bool    `mapstructure:"create_table"`

	// Ambient knobs not named by spec.md §6 but required to run:
	// the root of the YYMMDD/<auid>_<lang>_<model>.{wav,json,log}
	// tree, the poll interval for R5, the page size for C7's
	// recent-jobs listing, and the advisory-lock file resolving the
	// concurrent-pass open question (see SPEC_FULL.md).
	DataRoot  string `mapstructure:"data_root"`
	SleepSec  int    `mapstructure:"sleep_sec"`
	FetchMany int    `mapstructure:"fetch_many"`
	LockFile  string `mapstructure:"lock_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 5432)
	v.SetDefault("n_proc", 1)
	v.SetDefault("n_thread", 1)
	v.SetDefault("max_cpu", 2)
	v.SetDefault("ttl_coef", 2.0)
	v.SetDefault("wav_min_size", 1024)
	v.SetDefault("output_json_full", false)
	v.SetDefault("create_table", false)
	v.SetDefault("data_root", "./data")
	v.SetDefault("sleep_sec", 5)
	v.SetDefault("fetch_many", 100)
	v.SetDefault("lock_file", "./data/.scheduler.lock")
}

// Load reads the JSON configuration file at path.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("config", "no .env file found, using system environment only")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if cfg.NThread != 1 && cfg.NThread != 2 {
		return nil, fmt.Errorf("n_thread must be 1 or 2, got %d", cfg.NThread)
	}
	if err := os.MkdirAll(cfg.DataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create data_root %s: %w", cfg.DataRoot, err)
	}
	return &cfg, nil
}

// Watch re-reads the file on change and invokes onChange with the
// freshly parsed Config. Intended for the long-running HTTP server
// (C6/C7); the scheduler reads the file once per invocation instead.
func Watch(path string, onChange func(*Config)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			logger.Warn("config", "reload failed", err)
			return
		}
		logger.Info("config", fmt.Sprintf("reloaded from %s", filepath.Clean(e.Name)))
		onChange(&cfg)
	})
	v.WatchConfig()
	return nil
}
