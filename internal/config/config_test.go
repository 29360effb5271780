package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "callaudit", cfg.Store.Database)
	assert.Equal(t, "callaudit.db", cfg.Store.Path)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "chatgpt-4o-latest", cfg.Model.Name)
	assert.Equal(t, 0.0, cfg.Temperature())
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Archive.Kind)
	assert.Equal(t, "transcripts", cfg.Archive.Container)
	assert.Zero(t, cfg.AuditTimeout())
	assert.Zero(t, cfg.ModelTimeout())
}

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadWithEnviron(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, filepath.Join(dir, "callaudit.db"), cfg.Store.Path)
	assert.Equal(t, dir, cfg.Dir)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
store:
  driver: sqlite
  path: data/audits.db
model:
  provider: copilot
  name: gpt-4.1
  temperature: 0.3
  timeout_sec: 45
server:
  host: 127.0.0.1
  port: 9090
archive:
  kind: dir
  dir: /var/lib/callaudit/archive
audit:
  timeout_sec: 300
`)

	cfg, err := LoadWithEnviron(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, filepath.Join(dir, "data", "audits.db"), cfg.Store.Path)
	assert.Equal(t, "copilot", cfg.Model.Provider)
	assert.Equal(t, "gpt-4.1", cfg.Model.Name)
	assert.InDelta(t, 0.3, cfg.Temperature(), 1e-9)
	assert.Equal(t, 45*time.Second, cfg.ModelTimeout())
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "dir", cfg.Archive.Kind)
	assert.Equal(t, "/var/lib/callaudit/archive", cfg.Archive.Dir)
	assert.Equal(t, 5*time.Minute, cfg.AuditTimeout())
	require.NoError(t, cfg.Validate())
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "server:\n  port: 9000\n")

	cfg, err := LoadWithEnviron(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "chatgpt-4o-latest", cfg.Model.Name)
}

func TestLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, FileName, "store:\n  driver: memory\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := LoadWithEnviron(nested, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, root, cfg.Dir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "store: [unclosed")

	_, err := LoadWithEnviron(dir, nil)
	require.ErrorContains(t, err, "parsing")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "store:\n  driver: sqlite\nmodel:\n  name: gpt-4o\n")

	cfg, err := LoadWithEnviron(dir, []string{
		"CALLAUDIT_STORE=mongo",
		"MONGODB_URI=mongodb://localhost:27017",
		"MONGODB_DATABASE_NAME=audits",
		"OPENAI_API_KEY=sk-test",
		"CALLAUDIT_MODEL=gpt-4.1-mini",
		"CALLAUDIT_PORT=8123",
		"CALLAUDIT_AUDIT_TIMEOUT_SEC=60",
	})
	require.NoError(t, err)

	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Store.URI)
	assert.Equal(t, "audits", cfg.Store.Database)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "gpt-4.1-mini", cfg.Model.Name)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.AuditTimeout())
	require.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "OPENAI_API_KEY=from-dotenv\nMONGODB_URI=mongodb://dotenv\n")

	cfg, err := LoadWithEnviron(dir, []string{"MONGODB_URI=mongodb://process"})
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.Model.APIKey)
	assert.Equal(t, "mongodb://process", cfg.Store.URI, "process environment wins over .env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "mongo without uri",
			mutate:  func(c *Config) { c.Model.APIKey = "k" },
			wantErr: "MONGODB_URI",
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.Store.Driver = StoreMemory
			},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "unknown driver",
			mutate: func(c *Config) {
				c.Store.Driver = "postgres"
				c.Model.Provider = ProviderStub
			},
			wantErr: `unknown driver "postgres"`,
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Store.Driver = StoreMemory
				c.Model.Provider = "llama"
			},
			wantErr: `unknown provider "llama"`,
		},
		{
			name: "azure archive without account",
			mutate: func(c *Config) {
				c.Store.Driver = StoreMemory
				c.Model.Provider = ProviderStub
				c.Archive.Kind = ArchiveAzure
			},
			wantErr: "AZURE_STORAGE_ACCOUNT_URL",
		},
		{
			name: "temperature out of range",
			mutate: func(c *Config) {
				c.Store.Driver = StoreMemory
				c.Model.Provider = ProviderStub
				c.Model.Temperature = new(float64)
				*c.Model.Temperature = 3
			},
			wantErr: "temperature",
		},
		{
			name: "bad port",
			mutate: func(c *Config) {
				c.Store.Driver = StoreMemory
				c.Model.Provider = ProviderStub
				c.Server.Port = 70000
			},
			wantErr: "port",
		},
		{
			name: "memory and stub",
			mutate: func(c *Config) {
				c.Store.Driver = StoreMemory
				c.Model.Provider = ProviderStub
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
