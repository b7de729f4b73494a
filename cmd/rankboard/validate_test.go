package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// executeValidateCmd runs the validate command with the given config path
// and returns captured stdout and any error.
func executeValidateCmd(t *testing.T, configPath string) (string, error) {
	t.Helper()

	// capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	rootCmd.SetArgs([]string{"validate", "-c", configPath})
	err := rootCmd.Execute()

	// restore stdout
	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestRunValidate_ValidConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		phrases []string
	}{
		{
			name: "source",
			config: `
port: 8080
poll_interval: 10s
series_keys: [access, search]
ranking_series: search
source:
  name: traffic
  url: https://stats.example.com/sites
`,
			phrases: []string{
				"Config is valid!",
				"Port:          8080",
				"Poll interval: 10s",
				"Series:        access, search (ranking by search)",
				"Producer:      source traffic (https://stats.example.com/sites)",
			},
		},
		{
			name: "simulator with seed",
			config: `
simulator:
  enabled: true
  seed:
    - name: Bing
      access: [0.9]
    - name: Yahoo
      access: [0.8]
`,
			phrases: []string{
				"Series:        access, search, transaction, interaction (ranking by access)",
				"Producer:      simulator, 2 seed entities",
			},
		},
		{
			name:    "no producer",
			config:  `title: API only`,
			phrases: []string{"Producer:      none (API only)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeValidateCmd(t, writeConfig(t, tt.config))
			if err != nil {
				t.Fatalf("validate command error = %v", err)
			}

			for _, phrase := range tt.phrases {
				if !strings.Contains(output, phrase) {
					t.Errorf("output missing %q\nGot: %s", phrase, output)
				}
			}
		})
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `
source:
  name: ""
  url: https://example.com
`)

	_, err := executeValidateCmd(t, configPath)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}

	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error should mention 'name is required', got: %v", err)
	}
}

func TestRunValidate_ProducerConflict(t *testing.T) {
	configPath := writeConfig(t, `
source:
  name: traffic
  url: https://example.com
simulator:
  enabled: true
`)

	_, err := executeValidateCmd(t, configPath)
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("validate command error = %v, want mutually exclusive", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeValidateCmd(t, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}

	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error should mention 'failed to read', got: %v", err)
	}
}

func TestLoadConfig_DemoWithoutFile(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\") error = %v", err)
	}
	if !cfg.Simulator.Enabled {
		t.Error("Simulator.Enabled = false, want the demo simulator")
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"WARN", false},
		{"loud", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			_, err := newLogger(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
