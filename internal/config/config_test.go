package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "test.db"
redis:
  address: "localhost:6380"
booking:
  no_show_fee_cents: 2500
api:
  rate_limit:
    rps: 5
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}
	if cfg.Redis.Address != "localhost:6380" {
		t.Errorf("expected redis address localhost:6380, got %s", cfg.Redis.Address)
	}
	if cfg.Booking.NoShowFeeCents != 2500 {
		t.Errorf("expected no-show fee 2500, got %d", cfg.Booking.NoShowFeeCents)
	}
	if cfg.API.RateLimit.RPS != 5 {
		t.Errorf("expected rate limit rps 5, got %f", cfg.API.RateLimit.RPS)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TB_DB_PATH", "env.db")

	yamlContent := `
database:
  path: "${TB_DB_PATH}"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "env.db" {
		t.Errorf("expected database path env.db, got %s", cfg.Database.Path)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		Database:   DatabaseConfig{Path: "test.db"},
		Monitoring: MonitoringConfig{PrometheusEnabled: true},
	}
	cfg.applyDefaults()

	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Monitoring.PrometheusPort != 9090 {
		t.Errorf("expected default prometheus port 9090, got %d", cfg.Monitoring.PrometheusPort)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
	if cfg.Booking.WindowDays != 90 {
		t.Errorf("expected default booking window 90, got %d", cfg.Booking.WindowDays)
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Errorf("expected default redis address, got %s", cfg.Redis.Address)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
			},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "telegram enabled without token",
			cfg: Config{
				Database:      DatabaseConfig{Path: "path"},
				Notifications: NotificationsConfig{Telegram: TelegramConfig{Enabled: true}},
			},
			wantErr: true,
		},
		{
			name: "auth enabled without keys",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				API:      APIConfig{Auth: APIAuthConfig{Enabled: true}},
			},
			wantErr: true,
		},
		{
			name: "negative booking window",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{WindowDays: -1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
