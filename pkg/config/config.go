package config

import (
	"errors"
	"fmt"
	"github.com/dancavallaro/serial2influx/pkg/logging"
	"github.com/dancavallaro/serial2influx/pkg/serialreader"
	"gopkg.in/yaml.v3"
	"os"
	"strings"
	"time"
)

// Config is everything the bridge needs. Values come from defaults, then an
// optional YAML file, then SERIAL2INFLUX_* environment variables, then flags.
type Config struct {
	Serial      SerialConfig     `yaml:"serial"`
	Measurement string           `yaml:"measurement"`
	URL         string           `yaml:"url"`
	Num         int              `yaml:"num"`
	Publish     PublishConfig    `yaml:"publish"`
	Logging     logging.Config   `yaml:"logging"`
	MQTT        MQTTConfig       `yaml:"mqtt"`
	CloudWatch  CloudWatchConfig `yaml:"cloudwatch"`
}

type SerialConfig struct {
	Port      string        `yaml:"port"`
	BootDelay time.Duration `yaml:"boot_delay"`
}

type PublishConfig struct {
	// Timeout bounds each POST. Zero waits indefinitely.
	Timeout time.Duration `yaml:"timeout"`
}

// MQTTConfig enables mirroring every point to an MQTT broker.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
}

// CloudWatchConfig enables mirroring every point to CloudWatch metrics.
type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BootDelay: serialreader.DefaultBootDelay,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "serial2influx",
		},
		CloudWatch: CloudWatchConfig{
			Region:    "us-east-1",
			Namespace: "Serial2Influx",
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when path
// is empty) and environment overrides. It does not validate; callers apply
// flags first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERIAL2INFLUX_PORT"); v != "" {
		cfg.Serial.Port = v
	}
	if v := os.Getenv("SERIAL2INFLUX_MEASUREMENT"); v != "" {
		cfg.Measurement = v
	}
	if v := os.Getenv("SERIAL2INFLUX_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("SERIAL2INFLUX_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("SERIAL2INFLUX_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("SERIAL2INFLUX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks values that are wrong regardless of which options are
// present. Missing required options are reported by the bridge itself.
func (c *Config) Validate() error {
	var errs []string

	if c.Num < 0 {
		errs = append(errs, fmt.Sprintf("num must be >= 0, got %d", c.Num))
	}
	if c.Serial.BootDelay < 0 {
		errs = append(errs, "serial.boot_delay must not be negative")
	}
	if c.Publish.Timeout < 0 {
		errs = append(errs, "publish.timeout must not be negative")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("unknown logging.level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("unknown logging.format %q", c.Logging.Format))
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Sprintf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}
	if c.CloudWatch.Enabled && c.CloudWatch.Namespace == "" {
		errs = append(errs, "cloudwatch.namespace is required when cloudwatch is enabled")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
