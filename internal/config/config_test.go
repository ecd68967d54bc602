package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8084 {
		t.Errorf("Server.Port = %d, want 8084", cfg.Server.Port)
	}
	if cfg.Upload.MaxBytes != 32<<20 {
		t.Errorf("Upload.MaxBytes = %d, want %d", cfg.Upload.MaxBytes, 32<<20)
	}
	if cfg.Analysis != DefaultAnalysis() {
		t.Errorf("Analysis = %+v, want defaults", cfg.Analysis)
	}
	if cfg.Store.Driver != "" {
		t.Errorf("Store.Driver = %q, want disabled", cfg.Store.Driver)
	}
	if got := cfg.Address(); got != "localhost:8084" {
		t.Errorf("Address() = %q", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ANALYSIS_SEED", "7")
	t.Setenv("ANALYSIS_CHURN_DAYS", "60")
	t.Setenv("ANALYSIS_MIN_SUPPORT", "0.05")
	t.Setenv("ANALYSIS_REQUIRE_DATE", "true")
	t.Setenv("STORE_DRIVER", "sqlite3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Analysis.Seed != 7 || cfg.Analysis.ChurnDays != 60 || cfg.Analysis.MinSupport != 0.05 {
		t.Errorf("Analysis = %+v", cfg.Analysis)
	}
	if !cfg.Analysis.RequireDate {
		t.Error("RequireDate should be true")
	}
	if cfg.Store.Driver != "sqlite3" {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	data := "seed: 99\nchurn_days: 120\nforecast_model: naive\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANALYSIS_CONFIG_FILE", path)
	t.Setenv("ANALYSIS_CHURN_DAYS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Analysis.Seed != 99 {
		t.Errorf("Seed = %d, want 99 from file", cfg.Analysis.Seed)
	}
	if cfg.Analysis.ChurnDays != 30 {
		t.Errorf("ChurnDays = %d, want env value 30", cfg.Analysis.ChurnDays)
	}
	if cfg.Analysis.ForecastModel != "naive" {
		t.Errorf("ForecastModel = %q", cfg.Analysis.ForecastModel)
	}
	if cfg.Analysis.Clusters != 4 {
		t.Errorf("Clusters = %d, want default 4", cfg.Analysis.Clusters)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	if err := os.WriteFile(path, []byte("seed: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANALYSIS_CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "70000"}, "server port"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "invalid log level"},
		{"bad store driver", map[string]string{"STORE_DRIVER": "mysql"}, "invalid store driver"},
		{"bad test ratio", map[string]string{"ANALYSIS_TEST_RATIO": "1.5"}, "test ratio"},
		{"bad forecast model", map[string]string{"ANALYSIS_FORECAST_MODEL": "prophet"}, "invalid forecast model"},
		{"itemset too deep", map[string]string{"ANALYSIS_MAX_ITEMSET_SIZE": "40"}, "max itemset size"},
		{"min support zero", map[string]string{"ANALYSIS_MIN_SUPPORT": "0"}, "min support"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
