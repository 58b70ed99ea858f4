package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"

	"opsconsole/internal/domain"
)

// Environment variables read by Load.
const (
	EnvPrefix    = "OPSCONSOLE_"
	EnvConfigKey = EnvPrefix + "CONFIG_KEY"

	// EncPrefix marks a value that must be decrypted with the config key.
	EncPrefix = "enc:"
)

// DefaultBaseURL is the endpoint of a gateway running on the local machine.
const DefaultBaseURL = "http://127.0.0.1:18789"

// Config is the root configuration of the console.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Monitor MonitorConfig `yaml:"monitor"`
	Logger  LoggerConfig  `yaml:"logger"`
	Tracer  TracerConfig  `yaml:"tracer"`
	Console ConsoleConfig `yaml:"console"`
}

// GatewayConfig holds the known gateway endpoints and how to talk to them.
type GatewayConfig struct {
	Profiles       []ProfileConfig      `yaml:"profiles"`
	ActiveProfile  string               `yaml:"active_profile"`
	Timeouts       TimeoutsConfig       `yaml:"timeouts"`
	Client         ClientConfig         `yaml:"client"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProfileConfig is one named gateway endpoint.
type ProfileConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"` // may be "enc:<salt>:<ciphertext>"
}

// TimeoutsConfig bounds each wait phase of an RPC call.
type TimeoutsConfig struct {
	Connect time.Duration `yaml:"connect"`
	Request time.Duration `yaml:"request"`
	Receive time.Duration `yaml:"receive"`
}

// ClientConfig is the identity announced in the connect handshake.
type ClientConfig struct {
	ID      string `yaml:"id"`
	Version string `yaml:"version"`
}

// CircuitBreakerConfig configures the breaker around one-shot CLI calls.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// MonitorConfig tunes the connection monitor.
type MonitorConfig struct {
	PollInterval         time.Duration `yaml:"poll_interval"`
	InactivePollInterval time.Duration `yaml:"inactive_poll_interval"`
	BackoffBase          time.Duration `yaml:"backoff_base"`
	BackoffMax           time.Duration `yaml:"backoff_max"`
	ErrorDedupeWindow    time.Duration `yaml:"error_dedupe_window"`
}

// LoggerConfig holds logger settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// ConsoleConfig holds settings for the interactive dashboard.
type ConsoleConfig struct {
	TimelineSize int           `yaml:"timeline_size"`
	RetryEvery   time.Duration `yaml:"retry_every"` // minimum spacing of manual retries
	RetryBurst   int           `yaml:"retry_burst"`
}

// Defaults returns a config that talks to a local gateway without a token.
func Defaults() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Profiles:      []ProfileConfig{{Name: "Local", BaseURL: DefaultBaseURL}},
			ActiveProfile: "Local",
			Timeouts: TimeoutsConfig{
				Connect: 5 * time.Second,
				Request: 10 * time.Second,
				Receive: 10 * time.Second,
			},
			Client: ClientConfig{ID: "opsconsole", Version: "0.1"},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 3,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Monitor: MonitorConfig{
			PollInterval:         15 * time.Second,
			InactivePollInterval: 120 * time.Second,
			BackoffBase:          time.Second,
			BackoffMax:           30 * time.Second,
			ErrorDedupeWindow:    10 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
		Console: ConsoleConfig{
			TimelineSize: 200,
			RetryEvery:   time.Second,
			RetryBurst:   1,
		},
	}
}

// Profile returns the profile with the given name.
func (c *Config) Profile(name string) (ProfileConfig, bool) {
	for _, p := range c.Gateway.Profiles {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return ProfileConfig{}, false
}

// ActiveGateway resolves the active profile into a gateway configuration.
func (c *Config) ActiveGateway() (domain.GatewayConfiguration, error) {
	return c.GatewayFor(c.Gateway.ActiveProfile)
}

// GatewayFor resolves the named profile. The base URL is normalized; an
// unset port becomes DefaultGatewayPort.
func (c *Config) GatewayFor(name string) (domain.GatewayConfiguration, error) {
	p, ok := c.Profile(name)
	if !ok {
		return domain.GatewayConfiguration{}, domain.NewDomainError("Config.GatewayFor", domain.ErrInvalidInput,
			fmt.Sprintf("profile %q", name))
	}
	base, err := NormalizeBaseURL(p.BaseURL)
	if err != nil {
		return domain.GatewayConfiguration{}, err
	}
	return domain.GatewayConfiguration{BaseURL: base, Token: strings.TrimSpace(p.Token)}, nil
}

// Load reads the config file at path over Defaults. A missing file is not an
// error. Environment overrides apply next, then secrets are decrypted when
// OPSCONSOLE_CONFIG_KEY is set, and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfigLoad, path, err)
	default:
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		if err := validatePermissions(absPath); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfigLoad, path, err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv(EnvConfigKey); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies OPSCONSOLE_* variables on top of cfg.
// OPSCONSOLE_GATEWAY_URL and OPSCONSOLE_GATEWAY_TOKEN edit the active profile,
// creating it when it does not exist yet.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "GATEWAY_PROFILE"); v != "" {
		cfg.Gateway.ActiveProfile = v
	}
	if v := os.Getenv(EnvPrefix + "GATEWAY_URL"); v != "" {
		activeProfile(cfg).BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "GATEWAY_TOKEN"); v != "" {
		activeProfile(cfg).Token = v
	}
	if v := os.Getenv(EnvPrefix + "LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv(EnvPrefix + "LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	if v := os.Getenv(EnvPrefix + "TRACER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracer.Enabled = b
		}
	}
	if v := os.Getenv(EnvPrefix + "TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv(EnvPrefix + "CIRCUIT_BREAKER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gateway.CircuitBreaker.Enabled = b
		}
	}
	if d, ok := envDuration(EnvPrefix + "MONITOR_POLL_INTERVAL"); ok {
		cfg.Monitor.PollInterval = d
	}
	if d, ok := envDuration(EnvPrefix + "MONITOR_INACTIVE_POLL_INTERVAL"); ok {
		cfg.Monitor.InactivePollInterval = d
	}
	if d, ok := envDuration(EnvPrefix + "GATEWAY_CONNECT_TIMEOUT"); ok {
		cfg.Gateway.Timeouts.Connect = d
	}
	if d, ok := envDuration(EnvPrefix + "GATEWAY_REQUEST_TIMEOUT"); ok {
		cfg.Gateway.Timeouts.Request = d
	}
}

func activeProfile(cfg *Config) *ProfileConfig {
	for i := range cfg.Gateway.Profiles {
		if strings.EqualFold(cfg.Gateway.Profiles[i].Name, cfg.Gateway.ActiveProfile) {
			return &cfg.Gateway.Profiles[i]
		}
	}
	cfg.Gateway.Profiles = append(cfg.Gateway.Profiles, ProfileConfig{Name: cfg.Gateway.ActiveProfile})
	return &cfg.Gateway.Profiles[len(cfg.Gateway.Profiles)-1]
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// decryptSecrets replaces every "enc:" profile token with its plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.Gateway.Profiles {
		p := &cfg.Gateway.Profiles[i]
		if !strings.HasPrefix(p.Token, EncPrefix) {
			continue
		}
		plain, err := DecryptValue(strings.TrimPrefix(p.Token, EncPrefix), passphrase)
		if err != nil {
			return fmt.Errorf("profile %q token: %w", p.Name, err)
		}
		p.Token = plain
	}
	return nil
}

// EncryptValue encrypts plaintext with a key derived from passphrase.
// The result is hex(salt) + ":" + hex(nonce+ciphertext); prefix it with
// "enc:" to store it as a profile token.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(sealed), nil
}

// DecryptValue reverses EncryptValue. Every failure wraps domain.ErrDecryption.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("%w: invalid encrypted format", domain.ErrDecryption)
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("%w: decode salt: %v", domain.ErrDecryption, err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %v", domain.ErrDecryption, err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryption)
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}
	return string(plain), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
// Tokens live in this file.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
