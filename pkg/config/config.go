// Package config loads a types.Config from a YAML file and NOSQLAPI_*
// environment variables with viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

const (
	// FileName is the config file looked up in a config directory.
	FileName = "config.yaml"
	// EnvPrefix prefixes every environment override, e.g. NOSQLAPI_HOST.
	EnvPrefix = "NOSQLAPI"

	// DefaultDriver is used when no driver is configured.
	DefaultDriver = "sqlite"
)

// keys lists the Config fields environment variables may set.
var keys = []string{
	"driver", "host", "user", "password", "database", "port", "bind_address",
	"read_timeout", "write_timeout", "ssl", "ssl_ca", "ssl_cert", "tls",
	"ssl_key", "ssl_verify_cert", "max_allowed_packet", "data_dir",
}

// header precedes the YAML written by WriteDefault.
const header = `# nosqlctl configuration
# Every key may be overridden by NOSQLAPI_<KEY>, e.g. NOSQLAPI_HOST.
# Drivers: sqlite, sqlite-doc, sqlite-graph, redis, surreal.
`

// file is the subset of types.Config WriteDefault records.
type file struct {
	Driver   string         `yaml:"driver"`
	Database string         `yaml:"database,omitempty"`
	Host     string         `yaml:"host,omitempty"`
	Port     int            `yaml:"port,omitempty"`
	User     string         `yaml:"user,omitempty"`
	DataDir  string         `yaml:"data_dir,omitempty"`
	Options  map[string]any `yaml:"options,omitempty"`
}

// New returns a viper instance with defaults and environment binding. path
// is a config file or a directory holding config.yaml; empty skips files.
func New(path string) *viper.Viper {
	v := viper.New()
	v.SetDefault("driver", DefaultDriver)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	switch {
	case path == "":
	case filepath.Ext(path) != "":
		v.SetConfigFile(path)
	default:
		v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(path)
	}
	return v
}

// Load reads path (see New) and returns the validated Config. A missing
// config file is not an error.
func Load(path string) (types.Config, error) {
	v := New(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
				return types.Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return Decode(v)
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes a config file recording the connection fields of
// cfg, unless the file already exists. path is a file or a directory to
// hold config.yaml, as in New; missing directories are created. Passwords
// are never written. It returns the file path.
func WriteDefault(path string, cfg types.Config) (string, error) {
	if filepath.Ext(path) == "" {
		path = filepath.Join(path, FileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	_, err := os.Stat(path)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat config file: %w", err)
	}

	f := file{
		Driver:   cfg.Driver,
		Database: cfg.Database,
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		DataDir:  cfg.DataDir,
		Options:  cfg.Options,
	}
	if f.Driver == "" {
		f.Driver = DefaultDriver
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return path, os.WriteFile(path, append([]byte(header), data...), 0o644)
}
