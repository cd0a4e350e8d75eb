package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	backendFile  = "file"
	backendRedis = "redis"
)

// config is resolved with priority flag > env > default.
type config struct {
	ServerURL      string        `env:"SERVER_URL"         envDefault:"http://localhost:3000/api/v1"`
	SessionBackend string        `env:"SESSION_BACKEND"    envDefault:"file"`
	SessionFile    string        `env:"SESSION_FILE"       envDefault:".catalog-admin-session.json"`
	RedisURL       string        `env:"REDIS_URL"          envDefault:"redis://localhost:6379/0"`
	RedisPrefix    string        `env:"REDIS_PREFIX"       envDefault:"catalog-admin:"`
	PendingTimeout time.Duration `env:"PENDING_TIMEOUT"    envDefault:"0s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"    envDefault:"10s"`
	LogLevel       string        `env:"LOG_LEVEL"          envDefault:"warn"`
	Revalidate     bool          `env:"REVALIDATE_SESSION" envDefault:"false"`
	AdminEmail     string        `env:"ADMIN_EMAIL"`
	AdminPassword  string        `env:"ADMIN_PASSWORD"`
}

// usageError marks mistakes on the command line. They are shown verbatim.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

const usageText = `Usage: catalog-admin [flags] <command>

Commands:
  login [-email E] [-password P]     sign in and store the session
  logout                             remove the stored session
  whoami                             show the profile of the signed-in user
  status                             show the stored session without calling the backend
  products list                      list products
  products create <name> <price>     create a product
  products update <id> <name> <price>
  products delete <id>
  dashboard                          profile and products, fetched concurrently

Flags:
`

// loadConfig parses the environment into a config and lets flags in args
// override it. The remaining positional arguments are returned.
func loadConfig(args []string, output io.Writer) (*config, []string, error) {
	cfg := &config{}
	if err := env.Parse(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	fs := flag.NewFlagSet("catalog-admin", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, usageText)
		fs.PrintDefaults()
	}

	flagServerURL := fs.String("server-url", "", "Backend base URL (default: "+cfg.ServerURL+" or SERVER_URL env)")
	flagBackend := fs.String("session-backend", "", "Session store: file or redis (SESSION_BACKEND env)")
	flagSessionFile := fs.String("session-file", "", "Session file for the file backend (SESSION_FILE env)")
	flagRedisURL := fs.String("redis-url", "", "Redis URL for the redis backend (REDIS_URL env)")
	flagPending := fs.Duration("pending-timeout", 0, "Max wait for an in-flight refresh, 0 waits forever (PENDING_TIMEOUT env)")
	flagRevalidate := fs.Bool("revalidate", false, "Check the stored session against the backend before running")
	flagVerbose := fs.Bool("verbose", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg.ServerURL = getConfig(*flagServerURL, cfg.ServerURL)
	cfg.SessionBackend = strings.ToLower(getConfig(*flagBackend, cfg.SessionBackend))
	cfg.SessionFile = getConfig(*flagSessionFile, cfg.SessionFile)
	cfg.RedisURL = getConfig(*flagRedisURL, cfg.RedisURL)
	if *flagPending > 0 {
		cfg.PendingTimeout = *flagPending
	}
	if *flagRevalidate {
		cfg.Revalidate = true
	}
	if *flagVerbose {
		cfg.LogLevel = "debug"
	}

	if err := validateServerURL(cfg.ServerURL); err != nil {
		return nil, nil, fmt.Errorf("invalid SERVER_URL: %w", err)
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	switch cfg.SessionBackend {
	case backendFile, backendRedis:
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q (want file or redis)", cfg.SessionBackend)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, usagef("no command given")
	}
	return cfg, fs.Args(), nil
}

// getConfig returns flagValue unless it is empty.
func getConfig(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return fallback
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

func isPlainHTTP(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(rawURL), "http://")
}
