package intake

import (
	"strings"
	"time"
)

// Config consolidates the settings for the form-schema core and its
// collaborators.
type Config struct {
	Database DatabaseConfig `json:"database"`
	Storage  StorageConfig  `json:"storage"`
	Uploads  UploadPolicy   `json:"uploads"`
	Logging  LoggingConfig  `json:"logging"`
}

// TableNames holds the physical table names used by the Postgres stores.
type TableNames struct {
	Schemas     string `json:"schemas"`
	Submissions string `json:"submissions"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	MaxConnections  int           `json:"maxConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout"`
	UseIAMAuth      bool          `json:"useIAMAuth"` // generate a DSQL auth token instead of Password
	TableNames      TableNames    `json:"tableNames"`
}

// StorageConfig contains object-storage (S3) settings.
type StorageConfig struct {
	Bucket     string        `json:"bucket"`
	Region     string        `json:"region"`
	Endpoint   string        `json:"endpoint,omitempty"` // set for MinIO-style local endpoints
	AccessKey  string        `json:"accessKey,omitempty"`
	SecretKey  string        `json:"secretKey,omitempty"`
	KeyPrefix  string        `json:"keyPrefix"`
	PresignTTL time.Duration `json:"presignTTL"`
}

// UploadPolicy contains file-upload policy defaults applied when a field
// definition leaves them unspecified.
type UploadPolicy struct {
	DefaultMaxFileSizeMB int `json:"defaultMaxFileSizeMB"`
	// Categories maps a category name that schema authors may use in
	// fileTypes (e.g. "image") to the concrete extensions it covers.
	Categories map[string][]string `json:"categories"`
}

// ExtensionAllowed reports whether ext matches one of the allowed entries.
// Entries are matched case-insensitively, either as a literal extension or as
// a category expanded through the policy.
func (p UploadPolicy) ExtensionAllowed(allowed []string, ext string) bool {
	ext = strings.ToLower(ext)
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimPrefix(entry, "."))
		if entry == ext {
			return true
		}
		for _, member := range p.Categories[entry] {
			if strings.ToLower(member) == ext {
				return true
			}
		}
	}
	return false
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "intake",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  25,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			TableNames: TableNames{
				Schemas:     "form_schemas",
				Submissions: "form_submissions",
			},
		},
		Storage: StorageConfig{
			Region:     "us-east-1",
			KeyPrefix:  "uploads",
			PresignTTL: 15 * time.Minute,
		},
		Uploads: UploadPolicy{
			DefaultMaxFileSizeMB: 5,
			Categories: map[string][]string{
				"image":    {"jpg", "jpeg", "png", "gif", "webp"},
				"document": {"pdf", "doc", "docx", "txt"},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}
	if c.Database.TableNames.Schemas == "" {
		return &ConfigError{Field: "database.tableNames.schemas", Message: "must not be empty"}
	}
	if c.Database.TableNames.Submissions == "" {
		return &ConfigError{Field: "database.tableNames.submissions", Message: "must not be empty"}
	}
	if c.Uploads.DefaultMaxFileSizeMB <= 0 {
		return &ConfigError{Field: "uploads.defaultMaxFileSizeMB", Message: "must be greater than 0"}
	}
	if c.Storage.PresignTTL <= 0 {
		return &ConfigError{Field: "storage.presignTTL", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
