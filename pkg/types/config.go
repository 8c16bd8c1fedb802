package types

import (
	"errors"
	"time"
)

// Config holds the recognised connection parameters. Every field is
// optional; the contract itself does not read them, concrete drivers do.
type Config struct {
	Driver           string         `json:"driver" yaml:"driver" mapstructure:"driver"`                                     // Driver name used by factories and the CLI (sqlite, redis, surreal).
	Host             string         `json:"host" yaml:"host" mapstructure:"host"`                                           // Server host name or address.
	User             string         `json:"user" yaml:"user" mapstructure:"user"`                                           // Login user.
	Password         string         `json:"password" yaml:"password" mapstructure:"password"`                               // Login password.
	Database         string         `json:"database" yaml:"database" mapstructure:"database"`                               // Database selected by Connect.
	Port             int            `json:"port" yaml:"port" mapstructure:"port"`                                           // Server port; 0 means driver default.
	BindAddress      string         `json:"bind_address" yaml:"bind_address" mapstructure:"bind_address"`                   // Local address to bind outgoing connections to.
	ReadTimeout      time.Duration  `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`                   // Per-call read deadline; 0 disables.
	WriteTimeout     time.Duration  `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`                // Per-call write deadline; 0 disables.
	SSL              bool           `json:"ssl" yaml:"ssl" mapstructure:"ssl"`                                              // Use an encrypted transport.
	SSLCA            string         `json:"ssl_ca" yaml:"ssl_ca" mapstructure:"ssl_ca"`                                     // CA bundle path.
	SSLCert          string         `json:"ssl_cert" yaml:"ssl_cert" mapstructure:"ssl_cert"`                               // Client certificate path.
	TLS              bool           `json:"tls" yaml:"tls" mapstructure:"tls"`                                              // Alias of SSL kept for drivers that name it so.
	SSLKey           string         `json:"ssl_key" yaml:"ssl_key" mapstructure:"ssl_key"`                                  // Client key path.
	SSLVerifyCert    bool           `json:"ssl_verify_cert" yaml:"ssl_verify_cert" mapstructure:"ssl_verify_cert"`          // Verify the server certificate.
	MaxAllowedPacket int            `json:"max_allowed_packet" yaml:"max_allowed_packet" mapstructure:"max_allowed_packet"` // Largest payload in bytes; 0 means unlimited.
	DataDir          string         `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`                               // Directory for file-backed drivers.
	Options          map[string]any `json:"options" yaml:"options" mapstructure:"options"`                                  // Driver-specific extras.
}

// Config validation errors.
var (
	ErrPortRange       = errors.New("port must be between 0 and 65535")
	ErrTimeoutNegative = errors.New("timeouts must not be negative")
	ErrPacketNegative  = errors.New("max_allowed_packet must not be negative")
	ErrKeyWithoutCert  = errors.New("ssl_key requires ssl_cert")
)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return ErrPortRange
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return ErrTimeoutNegative
	}
	if c.MaxAllowedPacket < 0 {
		return ErrPacketNegative
	}
	if c.SSLKey != "" && c.SSLCert == "" {
		return ErrKeyWithoutCert
	}
	return nil
}

// Secure reports whether either SSL or TLS was requested.
func (c Config) Secure() bool {
	return c.SSL || c.TLS
}

// Option returns the driver-specific option stored under key, or def.
func (c Config) Option(key string, def any) any {
	if v, ok := c.Options[key]; ok {
		return v
	}
	return def
}
