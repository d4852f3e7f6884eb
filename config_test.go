package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "form_schemas", cfg.Database.TableNames.Schemas)
	assert.Equal(t, "form_submissions", cfg.Database.TableNames.Submissions)
	assert.Equal(t, 5, cfg.Uploads.DefaultMaxFileSizeMB)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "zero max connections",
			mutate:    func(c *Config) { c.Database.MaxConnections = 0 },
			wantField: "database.maxConnections",
		},
		{
			name:      "empty schema table",
			mutate:    func(c *Config) { c.Database.TableNames.Schemas = "" },
			wantField: "database.tableNames.schemas",
		},
		{
			name:      "empty submission table",
			mutate:    func(c *Config) { c.Database.TableNames.Submissions = "" },
			wantField: "database.tableNames.submissions",
		},
		{
			name:      "zero default file size",
			mutate:    func(c *Config) { c.Uploads.DefaultMaxFileSizeMB = 0 },
			wantField: "uploads.defaultMaxFileSizeMB",
		},
		{
			name:      "zero presign ttl",
			mutate:    func(c *Config) { c.Storage.PresignTTL = 0 },
			wantField: "storage.presignTTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestUploadPolicy_ExtensionAllowed(t *testing.T) {
	policy := DefaultConfig().Uploads

	tests := []struct {
		name    string
		allowed []string
		ext     string
		want    bool
	}{
		{"literal match", []string{"pdf"}, "pdf", true},
		{"literal with leading dot", []string{".pdf"}, "pdf", true},
		{"case-insensitive", []string{"PDF"}, "pdf", true},
		{"category expansion", []string{"image"}, "png", true},
		{"document category", []string{"document"}, "docx", true},
		{"off-list", []string{"pdf", "image"}, "docx", false},
		{"empty allow list", nil, "pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ExtensionAllowed(tt.allowed, tt.ext))
		})
	}
}
