package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Provider:         ProviderGemini,
		ModelName:        "gemini-2.5-flash",
		EmbedderModel:    DefaultEmbedderModel,
		RetrievalTopN:    5,
		HistoryLimit:     20,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "creatorlens",
		PostgresPassword: "secret-password-123",
		PostgresDBName:   "creatorlens",
		PostgresSSLMode:  "disable",
		VectorStoreDir:   "/tmp/vectors",
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }, ErrInvalidProvider},
		{"empty model", func(c *Config) { c.ModelName = " " }, ErrInvalidModelName},
		{"empty embedder", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"top-n too small", func(c *Config) { c.RetrievalTopN = 0 }, ErrInvalidTopK},
		{"top-n too large", func(c *Config) { c.RetrievalTopN = 51 }, ErrInvalidTopK},
		{"history limit zero", func(c *Config) { c.HistoryLimit = 0 }, ErrInvalidHistoryLimit},
		{"empty vector dir", func(c *Config) { c.VectorStoreDir = "" }, ErrInvalidVectorStoreDir},
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"port out of range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bad ssl mode", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := validConfig()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestValidateNil(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrConfigNil)
}

func TestMarshalJSONMasksPassword(t *testing.T) {
	cfg := validConfig()

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "secret-password-123")
	assert.Contains(t, out, maskedValue)
}

func TestStringNeverLeaksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "hunter22"

	assert.NotContains(t, cfg.String(), "hunter22")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, maskedValue, maskSecret("short"))
	masked := maskSecret("a-very-long-password")
	assert.True(t, strings.HasPrefix(masked, "a-"))
	assert.True(t, strings.HasSuffix(masked, "rd"))
	assert.NotContains(t, masked, "very-long")
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{ProviderGemini, "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{ProviderOpenAI, "gpt-4o", "openai/gpt-4o"},
		{ProviderGemini, "googleai/gemini-2.5-pro", "googleai/gemini-2.5-pro"}, // already qualified
	}
	for _, tt := range tests {
		cfg := &Config{Provider: tt.provider, ModelName: tt.model}
		assert.Equal(t, tt.want, cfg.FullModelName())
	}
}

func TestPostgresConnectionStringQuotesPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "pa ss'word"

	dsn := cfg.PostgresConnectionString()
	assert.Contains(t, dsn, `password='pa ss\'word'`)
}

func TestPostgresURLEncodesCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "p@ss/word"

	u := cfg.PostgresURL()
	assert.Contains(t, u, "postgres://")
	assert.NotContains(t, u, "p@ss/word") // must be percent-encoded
}

func TestParseDatabaseURL(t *testing.T) {
	cfg := validConfig()
	t.Setenv("DATABASE_URL", "postgres://app:pw@db.example.com:6543/lens?sslmode=require")

	require.NoError(t, cfg.parseDatabaseURL())
	assert.Equal(t, "db.example.com", cfg.PostgresHost)
	assert.Equal(t, 6543, cfg.PostgresPort)
	assert.Equal(t, "app", cfg.PostgresUser)
	assert.Equal(t, "pw", cfg.PostgresPassword)
	assert.Equal(t, "lens", cfg.PostgresDBName)
	assert.Equal(t, "require", cfg.PostgresSSLMode)
}

func TestParseDatabaseURLRejectsBadScheme(t *testing.T) {
	cfg := validConfig()
	t.Setenv("DATABASE_URL", "mysql://app:pw@db:3306/lens")

	assert.Error(t, cfg.parseDatabaseURL())
}
