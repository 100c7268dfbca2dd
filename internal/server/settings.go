package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"stepwise/internal/config"
	"stepwise/internal/logging"
)

const (
	// DefaultHost is the loopback interface used when no host is configured.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the default TCP port.
	DefaultPort = 3000
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 30 * time.Second
	// DefaultWriteTimeout covers an executed-mode test run.
	DefaultWriteTimeout = 5 * time.Minute
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second
	// DefaultMaxConnections caps simultaneous connections.
	DefaultMaxConnections = 64
	// WriteMargin is the minimum headroom the write timeout keeps over the
	// per-test execution timeout.
	WriteMargin = 30 * time.Second
)

// Settings captures runtime configuration for the HTTP server.
type Settings struct {
	Host           string
	Port           int // 0 picks a free port
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxConnections int
	Version        string
}

// SettingsFromConfig builds Settings from the server section of the config.
// The write timeout is raised to ExecutionTimeout plus WriteMargin when it is
// shorter, so an executed-mode response is never cut off mid-run.
func SettingsFromConfig(cfg *config.Config, version string) Settings {
	s := Settings{
		Host:           DefaultHost,
		Port:           DefaultPort,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		IdleTimeout:    DefaultIdleTimeout,
		MaxConnections: DefaultMaxConnections,
		Version:        version,
	}
	if cfg != nil {
		if host := strings.TrimSpace(cfg.Server.Host); host != "" {
			s.Host = host
		}
		s.Port = cfg.Server.Port
		s.ReadTimeout = cfg.ReadTimeout()
		s.WriteTimeout = cfg.WriteTimeout()
		s.IdleTimeout = cfg.IdleTimeout()
		s.MaxConnections = cfg.Server.MaxConnections
	}
	s.normalize()
	if cfg != nil {
		if floor := cfg.ExecutionTimeout() + WriteMargin; s.WriteTimeout < floor {
			logging.Server("write_timeout %s is shorter than execution timeout %s; using %s",
				s.WriteTimeout, cfg.ExecutionTimeout(), floor)
			s.WriteTimeout = floor
		}
	}
	return s
}

func (s *Settings) normalize() {
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port < 0 || s.Port > 65535 {
		s.Port = DefaultPort
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.MaxConnections < 0 {
		s.MaxConnections = 0
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
