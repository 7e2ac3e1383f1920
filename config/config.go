// Package config loads the daemon configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/googollee/go-comet"
	"github.com/googollee/go-comet/utils"
)

// Routers the daemon can mount the coordinator on.
const (
	RouterStd  = "std"
	RouterGin  = "gin"
	RouterIris = "iris"
)

const ErrInvalidRouter = utils.ConstError("invalid router")

type Server struct {
	Addr   string `yaml:"addr"`
	Path   string `yaml:"path"`
	Router string `yaml:"router"`
	// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Scheduler struct {
	Workers int `yaml:"workers"`
}

type Connection struct {
	// SuspendTimeout is handed to the chat framework; zero or negative
	// suspends without timeout.
	SuspendTimeout   time.Duration `yaml:"suspend_timeout"`
	EventQueueSize   int           `yaml:"event_queue_size"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
	ReadBufferSize   int           `yaml:"read_buffer_size"`
	WriteBufferSize  int           `yaml:"write_buffer_size"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	FrameworkVersion string        `yaml:"framework_version"`
}

type Config struct {
	Server     Server     `yaml:"server"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	Connection Connection `yaml:"connection"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			Path:            "/comet",
			Router:          RouterStd,
			ShutdownTimeout: 10 * time.Second,
		},
		Connection: Connection{
			SuspendTimeout: 30 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = envString(envAddr, c.Server.Addr)
	c.Server.Path = envString(envPath, c.Server.Path)
	c.Server.Router = envString(envRouter, c.Server.Router)
	c.Connection.SuspendTimeout = envDuration(envSuspendTimeout, c.Connection.SuspendTimeout)
}

func (c *Config) Validate() error {
	switch c.Server.Router {
	case RouterStd, RouterGin, RouterIris:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRouter, c.Server.Router)
	}

	if c.Server.Path == "" || c.Server.Path[0] != '/' {
		return fmt.Errorf("path %q must start with /", c.Server.Path)
	}

	return nil
}

// Options maps the connection settings to coordinator options.
func (c *Config) Options() *comet.Options {
	ret := &comet.Options{
		Workers:          c.Scheduler.Workers,
		EventQueueSize:   c.Connection.EventQueueSize,
		MaxBodyBytes:     c.Connection.MaxBodyBytes,
		ReadBufferSize:   c.Connection.ReadBufferSize,
		WriteBufferSize:  c.Connection.WriteBufferSize,
		FrameworkVersion: c.Connection.FrameworkVersion,
	}

	if len(c.Connection.AllowedOrigins) > 0 {
		ret.CheckOrigin = originChecker(c.Connection.AllowedOrigins)
	}

	return ret
}
