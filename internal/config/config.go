package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs at startup. Values come from CLI
// flags first, then environment variables, then defaults.
type Config struct {
	Port             int
	DatabasePath     string
	RequiredTotal    int
	TicketsPerStamps int
	AdminKey         string
	SeedFile         string
}

// Load reads an optional .env file and then parses flags and environment
// variables into a Config.
func Load(args []string) (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()
	return ParseFlags(args)
}

// ParseFlags parses CLI flags with environment fallback and validates the
// result.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("stamprally", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabasePath, "d", "", "SQLite database path")
	fs.StringVar(&cfg.AdminKey, "admin-key", "", "Admin API key (prefer env)")
	fs.StringVar(&cfg.SeedFile, "seed", "", "Optional JSON booth seed file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		port, err := intEnv("PORT", 8080)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = os.Getenv("DATABASE_PATH")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "data/stamprally.db"
	}

	var err error
	if cfg.RequiredTotal, err = intEnv("REQUIRED_TOTAL", 20); err != nil {
		return Config{}, err
	}
	if cfg.RequiredTotal < 1 {
		return Config{}, errors.New("REQUIRED_TOTAL must be at least 1")
	}

	if cfg.TicketsPerStamps, err = intEnv("TICKETS_PER_STAMPS", 5); err != nil {
		return Config{}, err
	}
	if cfg.TicketsPerStamps < 1 {
		return Config{}, errors.New("TICKETS_PER_STAMPS must be at least 1")
	}

	if cfg.AdminKey == "" {
		cfg.AdminKey = os.Getenv("ADMIN_KEY")
	}
	if cfg.AdminKey == "" {
		return Config{}, errors.New("admin key required (use --admin-key or ADMIN_KEY env)")
	}

	if cfg.SeedFile == "" {
		cfg.SeedFile = os.Getenv("SEED_FILE")
	}

	return cfg, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %q", name, raw)
	}
	return v, nil
}
