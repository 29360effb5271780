// Package config provides the Config struct and loader for .callaudit.yaml
// configuration files, .env files and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/callaudit/callaudit/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by Load.
const FileName = ".callaudit.yaml"

// Default values. New() references them and no other code should duplicate them.
const (
	DefaultStoreDriver  = StoreMongo
	DefaultDatabaseName = "callaudit"
	DefaultSQLitePath   = "callaudit.db"

	DefaultProvider    = ProviderOpenAI
	DefaultModel       = "chatgpt-4o-latest"
	DefaultTemperature = 0.0

	DefaultServerHost = ""
	DefaultServerPort = 8000

	DefaultArchiveKind      = ArchiveNone
	DefaultArchiveDir       = "archive/"
	DefaultArchiveContainer = "transcripts"

	DefaultAuditTimeout = 0
)

// Store drivers.
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Inference providers.
const (
	ProviderOpenAI  = "openai"
	ProviderCopilot = "copilot"
	ProviderStub    = "stub"
)

// Archive kinds.
const (
	ArchiveNone  = "none"
	ArchiveDir   = "dir"
	ArchiveAzure = "azure"
)

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver   string `yaml:"driver,omitempty"`
	URI      string `yaml:"uri,omitempty"`
	Database string `yaml:"database,omitempty"`
	Path     string `yaml:"path,omitempty"`
}

// ModelConfig selects and configures the inference provider.
type ModelConfig struct {
	Provider    string   `yaml:"provider,omitempty"`
	Name        string   `yaml:"name,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	// TimeoutSec bounds a single model call; 0 means no bound.
	TimeoutSec int `yaml:"timeout_sec,omitempty"`

	// APIKey only ever comes from the environment.
	APIKey string `yaml:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// ArchiveConfig selects where raw uploads are kept.
type ArchiveConfig struct {
	Kind       string `yaml:"kind,omitempty"`
	Dir        string `yaml:"dir,omitempty"`
	AccountURL string `yaml:"account_url,omitempty"`
	Container  string `yaml:"container,omitempty"`
}

// AuditConfig holds audit execution settings.
type AuditConfig struct {
	// TimeoutSec bounds one audit type of one record; 0 means no bound.
	TimeoutSec int `yaml:"timeout_sec,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store,omitempty"`
	Model   ModelConfig   `yaml:"model,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Archive ArchiveConfig `yaml:"archive,omitempty"`
	Audit   AuditConfig   `yaml:"audit,omitempty"`

	// Dir is the directory the configuration was loaded from. Relative paths
	// are resolved against it.
	Dir string `yaml:"-"`
}

// environment holds the variables that override file values.
type environment struct {
	MongoURI         string `env:"MONGODB_URI"`
	MongoDatabase    string `env:"MONGODB_DATABASE_NAME"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL"`
	StoreDriver      string `env:"CALLAUDIT_STORE"`
	SQLitePath       string `env:"CALLAUDIT_SQLITE_PATH"`
	Provider         string `env:"CALLAUDIT_PROVIDER"`
	Model            string `env:"CALLAUDIT_MODEL"`
	Port             int    `env:"CALLAUDIT_PORT"`
	ArchiveKind      string `env:"CALLAUDIT_ARCHIVE"`
	ArchiveDir       string `env:"CALLAUDIT_ARCHIVE_DIR"`
	ArchiveAccount   string `env:"AZURE_STORAGE_ACCOUNT_URL"`
	ArchiveContainer string `env:"CALLAUDIT_ARCHIVE_CONTAINER"`
	AuditTimeoutSec  int    `env:"CALLAUDIT_AUDIT_TIMEOUT_SEC"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:   DefaultStoreDriver,
			Database: DefaultDatabaseName,
			Path:     DefaultSQLitePath,
		},
		Model: ModelConfig{
			Provider:    DefaultProvider,
			Name:        DefaultModel,
			Temperature: utils.Ptr(DefaultTemperature),
		},
		Server: ServerConfig{
			Host: DefaultServerHost,
			Port: DefaultServerPort,
		},
		Archive: ArchiveConfig{
			Kind:      DefaultArchiveKind,
			Dir:       DefaultArchiveDir,
			Container: DefaultArchiveContainer,
		},
		Audit: AuditConfig{
			TimeoutSec: DefaultAuditTimeout,
		},
	}
}

// Load finds .callaudit.yaml by walking up from startDir (max 10 levels),
// merges it onto the defaults, then applies the .env file next to it and the
// process environment. The process environment wins over .env.
// If no config file is found, defaults plus environment are returned.
func Load(startDir string) (*Config, error) {
	return LoadWithEnviron(startDir, os.Environ())
}

// LoadWithEnviron is Load with an explicit environment in os.Environ form.
func LoadWithEnviron(startDir string, environ []string) (*Config, error) {
	cfg := New()

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", startDir, err)
	}
	cfg.Dir = absDir

	path, data, err := findConfigFile(absDir)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		mergeConfig(cfg, &fileCfg)
		cfg.Dir = filepath.Dir(path)
	case errors.Is(err, os.ErrNotExist):
		// defaults
	default:
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	es, err := environSet(cfg.Dir, environ)
	if err != nil {
		return nil, err
	}

	var e environment
	if err := env.Unmarshal(es, &e); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	applyEnvironment(cfg, &e)

	cfg.resolvePaths()
	return cfg, nil
}

// findConfigFile walks up from dir looking for FileName (max 10 levels).
// Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) (string, []byte, error) {
	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// environSet merges dir/.env under environ.
func environSet(dir string, environ []string) (env.EnvSet, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return es, nil
		}
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	for k, v := range dotenv {
		if _, ok := es[k]; !ok {
			es[k] = v
		}
	}
	return es, nil
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	// Store
	if src.Store.Driver != "" {
		dst.Store.Driver = src.Store.Driver
	}
	if src.Store.URI != "" {
		dst.Store.URI = src.Store.URI
	}
	if src.Store.Database != "" {
		dst.Store.Database = src.Store.Database
	}
	if src.Store.Path != "" {
		dst.Store.Path = src.Store.Path
	}

	// Model
	if src.Model.Provider != "" {
		dst.Model.Provider = src.Model.Provider
	}
	if src.Model.Name != "" {
		dst.Model.Name = src.Model.Name
	}
	if src.Model.Temperature != nil {
		dst.Model.Temperature = src.Model.Temperature
	}
	if src.Model.BaseURL != "" {
		dst.Model.BaseURL = src.Model.BaseURL
	}
	if src.Model.TimeoutSec != 0 {
		dst.Model.TimeoutSec = src.Model.TimeoutSec
	}

	// Server
	if src.Server.Host != "" {
		dst.Server.Host = src.Server.Host
	}
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}

	// Archive
	if src.Archive.Kind != "" {
		dst.Archive.Kind = src.Archive.Kind
	}
	if src.Archive.Dir != "" {
		dst.Archive.Dir = src.Archive.Dir
	}
	if src.Archive.AccountURL != "" {
		dst.Archive.AccountURL = src.Archive.AccountURL
	}
	if src.Archive.Container != "" {
		dst.Archive.Container = src.Archive.Container
	}

	// Audit
	if src.Audit.TimeoutSec != 0 {
		dst.Audit.TimeoutSec = src.Audit.TimeoutSec
	}
}

func applyEnvironment(cfg *Config, e *environment) {
	mergeConfig(cfg, &Config{
		Store: StoreConfig{
			Driver:   e.StoreDriver,
			URI:      e.MongoURI,
			Database: e.MongoDatabase,
			Path:     e.SQLitePath,
		},
		Model: ModelConfig{
			Provider: e.Provider,
			Name:     e.Model,
			BaseURL:  e.OpenAIBaseURL,
		},
		Server: ServerConfig{
			Port: e.Port,
		},
		Archive: ArchiveConfig{
			Kind:       e.ArchiveKind,
			Dir:        e.ArchiveDir,
			AccountURL: e.ArchiveAccount,
			Container:  e.ArchiveContainer,
		},
		Audit: AuditConfig{
			TimeoutSec: e.AuditTimeoutSec,
		},
	})
	cfg.Model.APIKey = e.OpenAIAPIKey
}

func (c *Config) resolvePaths() {
	utils.ResolvePaths(c.Dir, &c.Store.Path, &c.Archive.Dir)
}

// Validate checks that the settings required by the selected driver,
// provider and archive are present.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMongo:
		if c.Store.URI == "" {
			errs = append(errs, errors.New("store: mongo driver requires MONGODB_URI"))
		}
		if c.Store.Database == "" {
			errs = append(errs, errors.New("store: mongo driver requires a database name"))
		}
	case StoreSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store: sqlite driver requires a path"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("store: unknown driver %q (want %s)", c.Store.Driver, strings.Join([]string{StoreMongo, StoreSQLite, StoreMemory}, ", ")))
	}

	switch c.Model.Provider {
	case ProviderOpenAI:
		if c.Model.APIKey == "" {
			errs = append(errs, errors.New("model: openai provider requires OPENAI_API_KEY"))
		}
	case ProviderCopilot, ProviderStub:
	default:
		errs = append(errs, fmt.Errorf("model: unknown provider %q (want %s)", c.Model.Provider, strings.Join([]string{ProviderOpenAI, ProviderCopilot, ProviderStub}, ", ")))
	}
	if t := c.Temperature(); t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("model: temperature %v out of range [0, 2]", t))
	}
	if c.Model.TimeoutSec < 0 {
		errs = append(errs, errors.New("model: timeout_sec must not be negative"))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server: port %d out of range", c.Server.Port))
	}

	switch c.Archive.Kind {
	case ArchiveNone:
	case ArchiveDir:
		if c.Archive.Dir == "" {
			errs = append(errs, errors.New("archive: dir archive requires a directory"))
		}
	case ArchiveAzure:
		if c.Archive.AccountURL == "" {
			errs = append(errs, errors.New("archive: azure archive requires AZURE_STORAGE_ACCOUNT_URL"))
		}
		if c.Archive.Container == "" {
			errs = append(errs, errors.New("archive: azure archive requires a container"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive: unknown kind %q", c.Archive.Kind))
	}

	if c.Audit.TimeoutSec < 0 {
		errs = append(errs, errors.New("audit: timeout_sec must not be negative"))
	}

	return errors.Join(errs...)
}

// Temperature returns the sampling temperature, defaulting to 0.
func (c *Config) Temperature() float64 {
	if c.Model.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Model.Temperature
}

// AuditTimeout returns the per audit type bound, or 0.
func (c *Config) AuditTimeout() time.Duration {
	return time.Duration(c.Audit.TimeoutSec) * time.Second
}

// ModelTimeout returns the per call bound, or 0.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSec) * time.Second
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
