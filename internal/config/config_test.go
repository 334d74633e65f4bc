package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/trackstate/internal/errors"
)

func TestNew(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q, want %q", cfg.Metrics.Namespace, DefaultNamespace)
	}
	if cfg.Tracing.TracerName != DefaultTracerName {
		t.Errorf("Tracing.TracerName = %q, want %q", cfg.Tracing.TracerName, DefaultTracerName)
	}
	if cfg.S3.Region != "us-east-1" {
		t.Errorf("S3.Region = %q, want us-east-1", cfg.S3.Region)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if !errors.HasCode(err, "E405") {
		t.Errorf("Load(missing) error = %v, want E405", err)
	}

	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "name": "settings",
  "document": "docs/settings.yaml",
  "server": {
    "host": "0.0.0.0",
    "port": 8080,
    "allowedOrigins": ["https://app.example.com"]
  },
  "log": {
    "level": "debug",
    "format": "json"
  },
  "metrics": {
    "enabled": true
  },
  "s3": {
    "region": "eu-west-1",
    "endpoint": "http://localhost:9000",
    "pathStyle": true
  }
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Name != "settings" {
		t.Errorf("Name = %q, want settings", cfg.Name)
	}
	if want := filepath.Join(tmpDir, "docs", "settings.yaml"); cfg.Document != want {
		t.Errorf("Document = %q, want %q", cfg.Document, want)
	}
	if cfg.Address() != "0.0.0.0:8080" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.PingInterval != DefaultPingInterval {
		t.Errorf("PingInterval = %q, want default", cfg.Server.PingInterval)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Tracing.Enabled {
		t.Error("Tracing should be disabled")
	}
	if cfg.S3.Region != "eu-west-1" || !cfg.S3.PathStyle {
		t.Errorf("S3 = %+v", cfg.S3)
	}
	if level, err := cfg.LogLevel(); err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, %v", level, err)
	}
	if cfg.Path() != configPath || cfg.Dir() != tmpDir {
		t.Errorf("Path()=%q Dir()=%q", cfg.Path(), cfg.Dir())
	}
}

func TestLoadKeepsS3Document(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(`{"document": "s3://bucket/doc.json"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Document != "s3://bucket/doc.json" {
		t.Errorf("Document = %q", cfg.Document)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(`{"server": `), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if !errors.HasCode(err, "E401") {
		t.Fatalf("error = %v, want E401", err)
	}
	if !strings.Contains(err.(*errors.Error).Detail, ConfigFileName) {
		t.Errorf("detail does not name the file: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, false},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, false},
		{"bad ping interval", func(c *Config) { c.Server.PingInterval = "soon" }, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"warn level", func(c *Config) { c.Log.Level = "warn" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.valid && !errors.HasCode(err, "E401") {
				t.Errorf("Validate() = %v, want E401", err)
			}
		})
	}
}

func TestPingInterval(t *testing.T) {
	cfg := New()
	cfg.Server.PingInterval = "5s"
	d, err := cfg.PingInterval()
	if err != nil || d != 5*time.Second {
		t.Errorf("PingInterval() = %v, %v", d, err)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := New()
	cfg.Name = "saved"
	cfg.Server.Port = 9090

	if err := cfg.Save(); err == nil {
		t.Error("Save() without a path should fail")
	}

	path := filepath.Join(tmpDir, ConfigFileName)
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if loaded.Name != "saved" || loaded.Server.Port != 9090 {
		t.Errorf("reloaded = %+v", loaded)
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := FindProjectRoot(nested); !errors.HasCode(err, "E405") {
		t.Errorf("FindProjectRoot without config = %v, want E405", err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatal(err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot() = %q, want %q", root, tmpDir)
	}
	if !Exists(tmpDir) || Exists(nested) {
		t.Error("Exists() mismatch")
	}
}
