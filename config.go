package exmdb

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config describes a connection in file form.
type Config struct {
	Host           string
	Port           uint16
	Prefix         string
	Secure         bool
	Private        bool
	RemoteID       string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	TLS            TLSConfig
}

// TLSConfig holds the file-based TLS settings used when Secure is set.
type TLSConfig struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// DefaultConfig returns a Config with default port and timeouts.
func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		RemoteID:       DefaultRemoteID,
		DialTimeout:    DefaultDialTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
}

type fileConfig struct {
	Host           string        `toml:"host"`
	Port           int64         `toml:"port"`
	Prefix         string        `toml:"prefix"`
	Secure         bool          `toml:"secure"`
	Private        bool          `toml:"private"`
	RemoteID       string        `toml:"remote_id"`
	DialTimeout    string        `toml:"dial_timeout"`
	RequestTimeout string        `toml:"request_timeout"`
	TLS            fileTLSConfig `toml:"tls"`
}

type fileTLSConfig struct {
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// LoadConfig reads a TOML connection file. Keys that are absent keep their
// defaults; unknown keys are an error.
//
//	host = "mail.example.org"
//	port = 5000
//	prefix = "/var/lib/gromox/domain/1"
//	secure = true
//	request_timeout = "30s"
//
//	[tls]
//	ca_file = "/etc/ssl/exmdb-ca.pem"
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("exmdb: load config: %w", err)
	}
	return ParseConfig(string(data))
}

// ParseConfig parses TOML connection settings. See LoadConfig.
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("exmdb: parse config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("exmdb: parse config: unknown keys %s", strings.Join(keys, ", "))
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 0xFFFF {
			return Config{}, fmt.Errorf("exmdb: parse config: port %d out of range", raw.Port)
		}
		cfg.Port = uint16(raw.Port)
	}
	if meta.IsDefined("prefix") {
		cfg.Prefix = strings.TrimSpace(raw.Prefix)
	}
	cfg.Secure = raw.Secure
	cfg.Private = raw.Private
	if meta.IsDefined("remote_id") {
		cfg.RemoteID = strings.TrimSpace(raw.RemoteID)
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("exmdb: parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("exmdb: parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	cfg.TLS = TLSConfig{
		CAFile:             strings.TrimSpace(raw.TLS.CAFile),
		CertFile:           strings.TrimSpace(raw.TLS.CertFile),
		KeyFile:            strings.TrimSpace(raw.TLS.KeyFile),
		ServerName:         strings.TrimSpace(raw.TLS.ServerName),
		InsecureSkipVerify: raw.TLS.InsecureSkipVerify,
	}

	return cfg, cfg.Validate()
}

// Validate checks that the connection target is complete and that TLS
// settings are consistent.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port == 0 {
		errs = append(errs, errors.New("port is required"))
	}
	if c.Prefix == "" {
		errs = append(errs, errors.New("prefix is required"))
	}
	if c.DialTimeout < 0 || c.RequestTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls cert_file and key_file must be set together"))
	}
	if !c.Secure && (c.TLS.CAFile != "" || c.TLS.CertFile != "") {
		errs = append(errs, errors.New("tls files given but secure is false"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, errors.Join(errs...))
	}
	return nil
}

// TLSConfig builds the client TLS configuration, or nil when Secure is
// false.
func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.Secure {
		return nil, nil
	}
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
		ServerName:         c.TLS.ServerName,
	}
	if cfg.ServerName == "" {
		cfg.ServerName = c.Host
	}
	if c.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("exmdb: read tls ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("exmdb: parse tls ca bundle: %s", c.TLS.CAFile)
		}
		cfg.RootCAs = pool
	}
	if c.TLS.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("exmdb: load tls key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// Options converts the file settings to client options. Options passed to
// ConnectConfig after these take precedence.
func (c Config) Options() ([]Option, error) {
	tlsConfig, err := c.TLSConfig()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithPrivate(c.Private),
		WithRemoteID(c.RemoteID),
		WithDialTimeout(c.DialTimeout),
		WithTimeout(c.RequestTimeout),
		WithTLSConfig(tlsConfig),
	}, nil
}

// ConnectConfig connects using cfg. opts are applied after the options
// derived from cfg.
func ConnectConfig(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConnectError{Addr: cfg.Host, Err: err}
	}
	base, err := cfg.Options()
	if err != nil {
		return nil, &ConnectError{Addr: cfg.Host, Err: err}
	}
	return Connect(ctx, cfg.Host, cfg.Port, cfg.Prefix, cfg.Secure, append(base, opts...)...)
}
