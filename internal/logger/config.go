package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by EnvironmentConfig.
const (
	EnvLevel      = "YTSIG_LOG_LEVEL"
	EnvFormat     = "YTSIG_LOG_FORMAT"
	EnvOutput     = "YTSIG_LOG_OUTPUT"
	EnvCaller     = "YTSIG_LOG_CALLER"
	EnvTimestamp  = "YTSIG_LOG_TIMESTAMP"
	EnvComponents = "YTSIG_LOG_COMPONENTS"
)

// LogConfig is the serializable form of Config.
type LogConfig struct {
	Level      string          `json:"level"`
	Format     string          `json:"format"`
	Output     string          `json:"output"`
	Components map[string]bool `json:"components"`
	ShowCaller bool            `json:"show_caller"`
	Timestamp  bool            `json:"timestamp"`
}

// DefaultLogConfig returns default logging configuration
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  "INFO",
		Format: "text",
		Output: "stderr",
		Components: map[string]bool{
			string(ComponentApp):     true,
			string(ComponentCipher):  false,
			string(ComponentFormats): false,
			string(ComponentPlayer):  false,
		},
	}
}

// LoadConfigFromFile loads configuration from a JSON file
func LoadConfigFromFile(filename string) (*LogConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultLogConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// ToLoggerConfig converts LogConfig to logger.Config
func (c *LogConfig) ToLoggerConfig() (*Config, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}

	format, err := parseFormat(c.Format)
	if err != nil {
		return nil, fmt.Errorf("parse format: %w", err)
	}

	output, err := parseOutput(c.Output)
	if err != nil {
		return nil, fmt.Errorf("parse output: %w", err)
	}

	components := make(map[Component]bool, len(c.Components))
	for name, enabled := range c.Components {
		components[Component(name)] = enabled
	}

	return &Config{
		Level:      level,
		Format:     format,
		Output:     output,
		Components: components,
		ShowCaller: c.ShowCaller,
		Timestamp:  c.Timestamp,
	}, nil
}

func parseLevel(levelStr string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown level: %s", levelStr)
	}
}

func parseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(formatStr)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "color", "colored":
		return FormatColor, nil
	default:
		return FormatText, fmt.Errorf("unknown format: %s", formatStr)
	}
}

// parseOutput accepts stdout, stderr, null/none or file:<path>.
func parseOutput(outputStr string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(outputStr)) {
	case "stderr", "":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "null", "none":
		return io.Discard, nil
	}
	if strings.HasPrefix(outputStr, "file:") {
		filePath := strings.TrimPrefix(outputStr, "file:")
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		return file, nil
	}
	return nil, fmt.Errorf("unknown output: %s", outputStr)
}

// CreateLoggerFromConfig creates a logger from LogConfig
func CreateLoggerFromConfig(config *LogConfig) (*Logger, error) {
	loggerConfig, err := config.ToLoggerConfig()
	if err != nil {
		return nil, fmt.Errorf("convert config: %w", err)
	}
	return New(loggerConfig), nil
}

// EnvironmentConfig overlays the YTSIG_LOG_* variables on the defaults.
// YTSIG_LOG_COMPONENTS is a comma separated list; "all" enables every
// known component.
func EnvironmentConfig() *LogConfig {
	config := DefaultLogConfig()

	if level := os.Getenv(EnvLevel); level != "" {
		config.Level = level
	}
	if format := os.Getenv(EnvFormat); format != "" {
		config.Format = format
	}
	if output := os.Getenv(EnvOutput); output != "" {
		config.Output = output
	}
	if caller := os.Getenv(EnvCaller); caller != "" {
		config.ShowCaller = caller == "true" || caller == "1"
	}
	if timestamp := os.Getenv(EnvTimestamp); timestamp != "" {
		config.Timestamp = timestamp == "true" || timestamp == "1"
	}

	if components := os.Getenv(EnvComponents); components != "" {
		config.Components = make(map[string]bool)
		for _, comp := range strings.Split(components, ",") {
			comp = strings.TrimSpace(comp)
			switch comp {
			case "":
			case "all":
				for _, c := range []Component{ComponentApp, ComponentCipher, ComponentFormats, ComponentPlayer} {
					config.Components[string(c)] = true
				}
			default:
				config.Components[comp] = true
			}
		}
	}

	return config
}

// ValidateConfig validates the configuration without opening outputs.
func (c *LogConfig) ValidateConfig() error {
	if _, err := parseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	if _, err := parseFormat(c.Format); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	switch out := strings.ToLower(strings.TrimSpace(c.Output)); {
	case out == "", out == "stdout", out == "stderr", out == "null", out == "none":
	case strings.HasPrefix(c.Output, "file:") && len(c.Output) > len("file:"):
	default:
		return fmt.Errorf("invalid output: %s", c.Output)
	}
	return nil
}
