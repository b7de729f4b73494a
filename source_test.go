package rankboard

import (
	"strings"
	"testing"
	"time"
)

func TestNewSource_Valid(t *testing.T) {
	src, err := NewSource("traffic", "https://stats.example.com/sites",
		WithHeaders("Authorization", "Bearer token"),
		WithTimeout(5*time.Second),
		WithMethod("POST"),
		WithInterval(30*time.Second),
		WithDecoder(JSONFieldDecoder("data")),
	)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	if src.Name() != "traffic" {
		t.Errorf("Name() = %q, want traffic", src.Name())
	}
	if src.URL() != "https://stats.example.com/sites" {
		t.Errorf("URL() = %q", src.URL())
	}
	if src.Headers()["Authorization"] != "Bearer token" {
		t.Errorf("Headers() = %v, want Authorization set", src.Headers())
	}
	if src.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", src.Timeout())
	}
	if src.Method() != "POST" {
		t.Errorf("Method() = %q, want POST", src.Method())
	}
	if src.Interval() != 30*time.Second {
		t.Errorf("Interval() = %v, want 30s", src.Interval())
	}
	if src.Decoder() == nil {
		t.Error("Decoder() = nil, want the configured decoder")
	}
}

func TestNewSource_Defaults(t *testing.T) {
	src, err := NewSource("traffic", "http://localhost:9000")
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if src.Timeout() != 10*time.Second {
		t.Errorf("Timeout() = %v, want 10s", src.Timeout())
	}
	if src.Method() != "" || src.Interval() != 0 || src.Decoder() != nil {
		t.Errorf("defaults = method %q interval %v decoder set %v, want zero values",
			src.Method(), src.Interval(), src.Decoder() != nil)
	}
}

func TestNewSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		srcName string
		url     string
		opts    []SourceOption
		wantErr string
	}{
		{"empty name", "", "https://example.com", nil, "name cannot be empty"},
		{"no scheme", "s", "example.com/sites", nil, "scheme"},
		{"ftp scheme", "s", "ftp://example.com", nil, "scheme"},
		{"bad url", "s", "http://[::1", nil, "invalid URL"},
		{"odd headers", "s", "https://example.com", []SourceOption{WithHeaders("X-Key")}, "key-value pairs"},
		{"zero timeout", "s", "https://example.com", []SourceOption{WithTimeout(0)}, "timeout must be positive"},
		{"head method", "s", "https://example.com", []SourceOption{WithMethod("HEAD")}, "GET or POST"},
		{"short interval", "s", "https://example.com", []SourceOption{WithInterval(time.Millisecond)}, "at least 1 second"},
		{"long interval", "s", "https://example.com", []SourceOption{WithInterval(2 * time.Hour)}, "must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSource(tt.srcName, tt.url, tt.opts...)
			if err == nil {
				t.Fatal("NewSource() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewSource() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSource_HeadersIsCopy(t *testing.T) {
	src, _ := NewSource("traffic", "https://example.com", WithHeaders("X-Key", "a"))

	h := src.Headers()
	h["X-Key"] = "mutated"

	if src.Headers()["X-Key"] != "a" {
		t.Error("mutating Headers() result changed the source")
	}
}
