// Package config provides configuration loading for go-facesense commands.
//
// Values are layered: defaults, then an optional YAML file, then a .env
// file, then FACESENSE_* environment variables. Flags in cmd/ are applied
// last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-facesense/pkg/expression"
)

// Default configuration.
const (
	DefaultPort       = "8080"
	DefaultLogLevel   = "info"
	DefaultMQTTTopic  = "facesense/events"
	DefaultStatusRate = 15.0 // status broadcasts per second
	DefaultModelPath  = "models/face_detection_yunet.onnx"
)

// Config holds all configuration for the facesense service.
type Config struct {
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFile  string `yaml:"log_file"`
	Debug    bool   `yaml:"debug"`

	Port string `yaml:"port" validate:"required,numeric"`

	// SubjectMode is "per_subject" or "shared".
	SubjectMode expression.Mode       `yaml:"subject_mode" validate:"oneof=per_subject shared"`
	Thresholds  expression.Thresholds `yaml:"thresholds"`

	// StatusRate caps /ws/status broadcasts per second.
	StatusRate float64 `yaml:"status_rate" validate:"gt=0"`

	MQTT MQTTConfig `yaml:"mqtt"`

	Detector DetectorConfig `yaml:"detector"`
}

// MQTTConfig configures the event emitter. An empty Broker disables it.
type MQTTConfig struct {
	Broker         string        `yaml:"broker" validate:"omitempty,hostname_port"`
	ClientID       string        `yaml:"client_id"`
	Topic          string        `yaml:"topic" validate:"required"`
	QoS            byte          `yaml:"qos" validate:"lte=2"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DetectorConfig configures the YuNet detector used by cmd/facepose.
type DetectorConfig struct {
	ModelPath  string  `yaml:"model_path"`
	Confidence float64 `yaml:"confidence" validate:"gte=0,lte=1"`
	Camera     int     `yaml:"camera" validate:"gte=0"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		LogLevel:    DefaultLogLevel,
		Port:        DefaultPort,
		SubjectMode: expression.PerSubject,
		Thresholds:  expression.DefaultThresholds(),
		StatusRate:  DefaultStatusRate,
		MQTT: MQTTConfig{
			Topic:          DefaultMQTTTopic,
			QoS:            0,
			ConnectTimeout: 5 * time.Second,
		},
		Detector: DetectorConfig{
			ModelPath:  DefaultModelPath,
			Confidence: 0.5,
		},
	}
}

// Load builds the configuration from path (optional), .env and the
// environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FACESENSE_* variables.
func (c *Config) ApplyEnv() error {
	setString(&c.LogLevel, "FACESENSE_LOG_LEVEL")
	setString(&c.LogFile, "FACESENSE_LOG_FILE")
	setString(&c.Port, "FACESENSE_PORT")
	setString(&c.MQTT.Broker, "FACESENSE_MQTT_BROKER")
	setString(&c.MQTT.ClientID, "FACESENSE_MQTT_CLIENT_ID")
	setString(&c.MQTT.Topic, "FACESENSE_MQTT_TOPIC")
	setString(&c.Detector.ModelPath, "FACESENSE_MODEL_PATH")

	if v := os.Getenv("FACESENSE_SUBJECT_MODE"); v != "" {
		c.SubjectMode = expression.Mode(v)
	}

	floats := []struct {
		dst *float64
		key string
	}{
		{&c.Thresholds.EyeClose, "FACESENSE_EYE_CLOSE_THRESHOLD"},
		{&c.Thresholds.EyeOpen, "FACESENSE_EYE_OPEN_THRESHOLD"},
		{&c.Thresholds.MouthOpen, "FACESENSE_MOUTH_OPEN_THRESHOLD"},
		{&c.StatusRate, "FACESENSE_STATUS_RATE"},
	}
	for _, f := range floats {
		if err := setFloat(f.dst, f.key); err != nil {
			return err
		}
	}

	if v := os.Getenv("FACESENSE_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Field: "FACESENSE_DEBUG", Message: err.Error()}
		}
		c.Debug = b
	}
	return nil
}

// Validate checks struct constraints and the thresholds' dead zone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &Error{Field: verrs[0].Namespace(), Message: fmt.Sprintf("failed %q constraint", verrs[0].Tag())}
		}
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return &Error{Field: "Thresholds", Message: err.Error()}
	}
	return nil
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

var validate = validator.New()

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return &Error{Field: key, Message: err.Error()}
	}
	*dst = f
	return nil
}
