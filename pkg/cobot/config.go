package cobot

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = "cobot.yaml"

// Duration wraps time.Duration so config values can be written as "250ms"
// instead of raw nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("bad duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("bad duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Config holds the session constants. None of these are reconfigurable
// mid-session; a new value takes effect on the next Connect.
type Config struct {
	// Port and Baud are the defaults used when the caller does not supply
	// connection parameters explicitly.
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	// PollInterval is the telemetry cadence while the session is Ready.
	PollInterval Duration `yaml:"poll_interval"`

	// InitAttempts is the total number of bring-up attempts before the
	// session gives up and falls back to Disconnected. 1 means no retry.
	InitAttempts int `yaml:"init_attempts"`

	// InitRetryDelay is the fixed delay between bring-up attempts.
	InitRetryDelay Duration `yaml:"init_retry_delay"`

	Log LogConfig `yaml:"log"`

	// Joints overrides the per-joint limits. Empty means the six default
	// axes; if present it must describe every joint.
	Joints []JointConfig `yaml:"joints,omitempty"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// JointConfig is the per-joint section of the config file.
type JointConfig struct {
	Name     string  `yaml:"name"`
	MinAngle float64 `yaml:"min_angle"`
	MaxAngle float64 `yaml:"max_angle"`
	MinSpeed float64 `yaml:"min_speed"`
	MaxSpeed float64 `yaml:"max_speed"`
}

// DefaultConfig returns the defaults observed on the reference controller.
func DefaultConfig() Config {
	return Config{
		Port:           "/dev/ttyUSB0",
		Baud:           115200,
		PollInterval:   Duration(250 * time.Millisecond),
		InitAttempts:   1,
		InitRetryDelay: Duration(2 * time.Second),
		Log:            LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML config file, layered over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the config for values the session cannot run with.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: port must not be empty")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("config: baud must be positive, got %d", c.Baud)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.InitAttempts < 1 {
		return fmt.Errorf("config: init_attempts must be at least 1, got %d", c.InitAttempts)
	}
	if c.InitRetryDelay < 0 {
		return fmt.Errorf("config: init_retry_delay must not be negative, got %s", c.InitRetryDelay)
	}
	if len(c.Joints) != 0 && len(c.Joints) != JointCount {
		return fmt.Errorf("config: joints must describe all %d axes, got %d", JointCount, len(c.Joints))
	}
	for i, jc := range c.Joints {
		if jc.MinAngle > jc.MaxAngle {
			return fmt.Errorf("config: joint %d (%s): min_angle %.1f above max_angle %.1f", i, jc.Name, jc.MinAngle, jc.MaxAngle)
		}
		if jc.MinSpeed > jc.MaxSpeed {
			return fmt.Errorf("config: joint %d (%s): min_speed %.1f above max_speed %.1f", i, jc.Name, jc.MinSpeed, jc.MaxSpeed)
		}
	}
	return nil
}

// JointMeta returns the joint metadata described by the config, or the
// defaults when no joints section is present.
func (c Config) JointMeta() []Joint {
	if len(c.Joints) == 0 {
		return DefaultJoints()
	}
	meta := make([]Joint, len(c.Joints))
	for i, jc := range c.Joints {
		meta[i] = Joint{
			Name:     jc.Name,
			MinAngle: jc.MinAngle,
			MaxAngle: jc.MaxAngle,
			MinSpeed: jc.MinSpeed,
			MaxSpeed: jc.MaxSpeed,
		}
	}
	return meta
}
