package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-facesense/pkg/expression"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
	if cfg.Thresholds != expression.DefaultThresholds() {
		t.Errorf("Thresholds = %+v, want defaults", cfg.Thresholds)
	}
	if cfg.SubjectMode != expression.PerSubject {
		t.Errorf("SubjectMode = %q, want %q", cfg.SubjectMode, expression.PerSubject)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facesense.yaml")
	data := []byte(`
port: "9090"
subject_mode: shared
thresholds:
  eye_close: 0.1
  eye_open: 0.2
  mouth_open: 0.4
mqtt:
  broker: localhost:1883
  topic: lab/events
  qos: 1
  connect_timeout: 2s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.SubjectMode != expression.Shared {
		t.Errorf("SubjectMode = %q, want shared", cfg.SubjectMode)
	}
	want := expression.Thresholds{EyeClose: 0.1, EyeOpen: 0.2, MouthOpen: 0.4}
	if cfg.Thresholds != want {
		t.Errorf("Thresholds = %+v, want %+v", cfg.Thresholds, want)
	}
	if cfg.MQTT.Broker != "localhost:1883" || cfg.MQTT.QoS != 1 || cfg.MQTT.Topic != "lab/events" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.MQTT.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, want 2s", cfg.MQTT.ConnectTimeout)
	}
	// Unset keys keep their defaults.
	if cfg.StatusRate != DefaultStatusRate {
		t.Errorf("StatusRate = %v, want %v", cfg.StatusRate, DefaultStatusRate)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil, want read error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FACESENSE_PORT", "7000")
	t.Setenv("FACESENSE_EYE_CLOSE_THRESHOLD", "0.05")
	t.Setenv("FACESENSE_SUBJECT_MODE", "shared")
	t.Setenv("FACESENSE_DEBUG", "true")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}

	if cfg.Port != "7000" {
		t.Errorf("Port = %q, want 7000", cfg.Port)
	}
	if cfg.Thresholds.EyeClose != 0.05 {
		t.Errorf("EyeClose = %v, want 0.05", cfg.Thresholds.EyeClose)
	}
	if cfg.SubjectMode != expression.Shared {
		t.Errorf("SubjectMode = %q, want shared", cfg.SubjectMode)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestApplyEnv_BadFloat(t *testing.T) {
	t.Setenv("FACESENSE_MOUTH_OPEN_THRESHOLD", "wide")

	cfg := Default()
	err := cfg.ApplyEnv()

	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("ApplyEnv() error = %v, want *Error", err)
	}
	if cerr.Field != "FACESENSE_MOUTH_OPEN_THRESHOLD" {
		t.Errorf("Field = %q", cerr.Field)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad port", func(c *Config) { c.Port = "http" }},
		{"bad mode", func(c *Config) { c.SubjectMode = "crowd" }},
		{"zero rate", func(c *Config) { c.StatusRate = 0 }},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }},
		{"bad broker", func(c *Config) { c.MQTT.Broker = "no port" }},
		{"no dead zone", func(c *Config) { c.Thresholds.EyeOpen = c.Thresholds.EyeClose }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			var cerr *Error
			if err := cfg.Validate(); !errors.As(err, &cerr) {
				t.Errorf("Validate() error = %v, want *Error", err)
			}
		})
	}
}
