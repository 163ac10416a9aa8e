package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "pg"
)

type Config struct {
	Addr      string `json:"addr"      env:"REKORD_ADDR"`
	DSLDir    string `json:"dslDir"    env:"REKORD_DSL_DIR"`
	EnumsDir  string `json:"enumsDir"  env:"REKORD_ENUMS_DIR"`
	RolesPath string `json:"rolesPath" env:"REKORD_ROLES_PATH"`

	// Store: "memory" | "pg". Пусто — pg, если задан DBURL.
	Store       string `json:"store"       env:"REKORD_STORE"`
	DBURL       string `json:"dbUrl"       env:"REKORD_DB_URL"`
	PGSchema    string `json:"pgSchema"    env:"REKORD_PG_SCHEMA"`
	AutoMigrate bool   `json:"autoMigrate" env:"REKORD_AUTO_MIGRATE"`

	DBMaxOpenConns    int           `json:"dbMaxOpenConns" env:"REKORD_DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `json:"dbMaxIdleConns" env:"REKORD_DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `json:"-"              env:"REKORD_DB_CONN_MAX_LIFETIME"`

	// Env — окружение развёртывания, фильтрует поля форм (env=prod|dev).
	Env       string `json:"env"       env:"REKORD_ENV"`
	LogLevel  string `json:"logLevel"  env:"REKORD_LOG_LEVEL"`
	LogFormat string `json:"logFormat" env:"REKORD_LOG_FORMAT"`

	// HashCost — стоимость bcrypt; 0 — по умолчанию.
	HashCost        int           `json:"hashCost" env:"REKORD_HASH_COST"`
	ShutdownTimeout time.Duration `json:"-"        env:"REKORD_SHUTDOWN_TIMEOUT"`
}

func def() Config {
	return Config{
		Addr:      ":8080",
		DSLDir:    "dsl",
		EnumsDir:  "reference/enums",
		RolesPath: "reference/roles.yaml",
		PGSchema:  "public",

		DBMaxOpenConns:    10,
		DBMaxIdleConns:    5,
		DBConnMaxLifetime: 30 * time.Minute,

		Env:       "dev",
		LogLevel:  "info",
		LogFormat: "text",

		ShutdownTimeout: 10 * time.Second,
	}
}

func loadJSON(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, c)
}

// Load: умолчания → JSON (если файл есть) → ENV (REKORD_*) → флаги из args.
func Load(jsonPath string, args []string) (Config, error) {
	cfg := def()

	// первый проход — только путь к конфигу
	probe := flag.NewFlagSet("probe", flag.ContinueOnError)
	probe.SetOutput(io.Discard)
	probePath := probe.String("config", jsonPath, "")
	_ = probe.Parse(filterConfigArgs(args))
	path := *probePath

	// JSON (если файл существует)
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		if err := loadJSON(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}

	// ENV overrides
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// Flags overrides
	fs := flag.NewFlagSet("rekord", flag.ContinueOnError)
	fs.String("config", path, "Path to config JSON")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DSLDir, "dsl", cfg.DSLDir, "Path to DSL directory")
	fs.StringVar(&cfg.EnumsDir, "enums", cfg.EnumsDir, "Path to enums directory")
	fs.StringVar(&cfg.RolesPath, "roles", cfg.RolesPath, "Path to roles catalog")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Storage backend (memory/pg)")
	fs.StringVar(&cfg.DBURL, "db", cfg.DBURL, "Postgres URL")
	fs.StringVar(&cfg.PGSchema, "pg-schema", cfg.PGSchema, "Postgres schema")
	fs.BoolVar(&cfg.AutoMigrate, "auto-migrate", cfg.AutoMigrate, "Create tables on start")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Deployment environment")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug/info/warn/error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text/json)")
	fs.IntVar(&cfg.HashCost, "hash-cost", cfg.HashCost, "bcrypt cost (0 = default)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

// LoadWithPath — Load с аргументами процесса.
func LoadWithPath(jsonPath string) (Config, error) {
	return Load(jsonPath, os.Args[1:])
}

func (c *Config) normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.DSLDir = strings.TrimSpace(c.DSLDir)
	c.EnumsDir = strings.TrimSpace(c.EnumsDir)
	c.RolesPath = strings.TrimSpace(c.RolesPath)
	c.DBURL = strings.TrimSpace(c.DBURL)
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = StoreMemory
		if c.DBURL != "" {
			c.Store = StorePostgres
		}
	}
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DBURL == "" {
			errs = append(errs, errors.New("store=pg requires dbUrl"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.DSLDir == "" {
		errs = append(errs, errors.New("dslDir is required"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if c.HashCost != 0 && (c.HashCost < bcrypt.MinCost || c.HashCost > bcrypt.MaxCost) {
		errs = append(errs, fmt.Errorf("hashCost %d out of range [%d, %d]", c.HashCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	return errors.Join(errs...)
}

// filterConfigArgs оставляет только -config, чтобы пробный разбор не падал
// на остальных флагах.
func filterConfigArgs(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		name := strings.TrimLeft(a, "-")
		switch {
		case strings.HasPrefix(name, "config="):
			out = append(out, a)
		case name == "config" && strings.HasPrefix(a, "-") && i+1 < len(args):
			out = append(out, a, args[i+1])
			i++
		}
	}
	return out
}
