package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Engine    EngineConfig        `mapstructure:"engine"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Metrics   MetricsConfig       `mapstructure:"metrics"`
	Languages map[string]Language `mapstructure:"languages"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
	RESTPort  int    `mapstructure:"rest_port"`
}

// EngineConfig holds execution engine configuration
type EngineConfig struct {
	Backend           string `mapstructure:"backend"`
	CompileTimeoutSec int    `mapstructure:"compile_timeout_sec"`
	RunTimeoutSec     int    `mapstructure:"run_timeout_sec"`
	MaxCodeBytes      int    `mapstructure:"max_code_bytes"`
	MaxOutputBytes    int    `mapstructure:"max_output_bytes"`
	WorkspaceRoot     string `mapstructure:"workspace_root"`
	DefaultLanguage   string `mapstructure:"default_language"`
	MemoryMB          int    `mapstructure:"memory_mb"`
	NetworkEnabled    bool   `mapstructure:"network_enabled"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// MetricsConfig holds prometheus metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Language holds the toolchain description for one supported language.
//
// Command templates are split into arguments before placeholder expansion,
// so a placeholder always expands to exactly one argument.
// Supported placeholders: {src}, {bin}, {dir}, {class}.
type Language struct {
	Kind         string            `mapstructure:"kind" yaml:"kind"`
	SourceFile   string            `mapstructure:"source_file" yaml:"source_file"`
	BinaryFile   string            `mapstructure:"binary_file" yaml:"binary_file"`
	CompileCmd   string            `mapstructure:"compile_cmd" yaml:"compile_cmd"`
	RunCmd       string            `mapstructure:"run_cmd" yaml:"run_cmd"`
	Image        string            `mapstructure:"image" yaml:"image"`
	Environment  map[string]string `mapstructure:"environment" yaml:"environment"`
	DenyPatterns []string          `mapstructure:"deny_patterns" yaml:"deny_patterns"`
}

// Engine backends
const (
	BackendLocal  = "local"
	BackendDocker = "docker"
	BackendPodman = "podman"
)

// Language kinds
const (
	KindNative      = "native"
	KindJVM         = "jvm"
	KindInterpreted = "interpreted"
)

// NobodyID is the uid and gid container programs run as when the engine is root
const NobodyID = 65534

// Upper bounds keep compile+run+overhead below a typical 30s caller deadline.
const (
	MaxCompileTimeoutSec = 10
	MaxRunTimeoutSec     = 25
)

// New loads and validates the application configuration
func New() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	return load(v)
}

// LoadFile loads and validates the configuration from an explicit file path
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("CODERUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "rest")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.rest_port", 3001)

	v.SetDefault("engine.backend", BackendLocal)
	v.SetDefault("engine.compile_timeout_sec", 10)
	v.SetDefault("engine.run_timeout_sec", 20)
	v.SetDefault("engine.max_code_bytes", 50000)
	v.SetDefault("engine.max_output_bytes", 1<<20)
	v.SetDefault("engine.workspace_root", "")
	v.SetDefault("engine.default_language", "python")
	v.SetDefault("engine.memory_mb", 256)
	v.SetDefault("engine.network_enabled", false)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "coderun")

	for name, lang := range DefaultLanguages() {
		prefix := "languages." + name + "."
		v.SetDefault(prefix+"kind", lang.Kind)
		v.SetDefault(prefix+"source_file", lang.SourceFile)
		v.SetDefault(prefix+"binary_file", lang.BinaryFile)
		v.SetDefault(prefix+"compile_cmd", lang.CompileCmd)
		v.SetDefault(prefix+"run_cmd", lang.RunCmd)
		v.SetDefault(prefix+"image", lang.Image)
	}
}

// DefaultLanguages returns the built-in toolchain table
func DefaultLanguages() map[string]Language {
	return map[string]Language{
		"c": {
			Kind:       KindNative,
			SourceFile: "main.c",
			BinaryFile: "program",
			CompileCmd: "gcc -O2 -o {bin} {src}",
			RunCmd:     "{bin}",
			Image:      "gcc:13",
		},
		"cpp": {
			Kind:       KindNative,
			SourceFile: "main.cpp",
			BinaryFile: "program",
			CompileCmd: "g++ -std=c++17 -O2 -o {bin} {src}",
			RunCmd:     "{bin}",
			Image:      "gcc:13",
		},
		"java": {
			Kind:       KindJVM,
			SourceFile: "Main.java",
			CompileCmd: "javac -d {dir} {src}",
			RunCmd:     "java -cp {dir} {class}",
			Image:      "eclipse-temurin:21-jdk",
		},
		"python": {
			Kind:       KindInterpreted,
			SourceFile: "main.py",
			RunCmd:     "python3 -B {src}",
			Image:      "python:3.12-slim",
		},
		"javascript": {
			Kind:       KindInterpreted,
			SourceFile: "main.js",
			RunCmd:     "node {src}",
			Image:      "node:20-alpine",
		},
	}
}

func load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	switch c.Server.Transport {
	case "stdio", "http", "rest":
	default:
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio', 'http' or 'rest'", c.Server.Transport)
	}

	switch c.Engine.Backend {
	case BackendLocal, BackendDocker, BackendPodman:
	default:
		return fmt.Errorf("unsupported engine.backend: %s", c.Engine.Backend)
	}

	if c.Engine.CompileTimeoutSec <= 0 || c.Engine.CompileTimeoutSec > MaxCompileTimeoutSec {
		return fmt.Errorf("engine.compile_timeout_sec must be in 1..%d, got: %d", MaxCompileTimeoutSec, c.Engine.CompileTimeoutSec)
	}

	if c.Engine.RunTimeoutSec <= 0 || c.Engine.RunTimeoutSec > MaxRunTimeoutSec {
		return fmt.Errorf("engine.run_timeout_sec must be in 1..%d, got: %d", MaxRunTimeoutSec, c.Engine.RunTimeoutSec)
	}

	if c.Engine.MaxCodeBytes <= 0 {
		return fmt.Errorf("engine.max_code_bytes must be positive, got: %d", c.Engine.MaxCodeBytes)
	}

	if c.Engine.MaxOutputBytes <= 0 {
		return fmt.Errorf("engine.max_output_bytes must be positive, got: %d", c.Engine.MaxOutputBytes)
	}

	switch c.Logging.Mode {
	case "production", "development":
	default:
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	for name, lang := range c.Languages {
		switch lang.Kind {
		case KindNative, KindJVM:
			if strings.TrimSpace(lang.CompileCmd) == "" {
				return fmt.Errorf("languages.%s.compile_cmd is required for kind %s", name, lang.Kind)
			}
		case KindInterpreted:
		default:
			return fmt.Errorf("invalid languages.%s.kind: %s", name, lang.Kind)
		}
		if strings.TrimSpace(lang.RunCmd) == "" {
			return fmt.Errorf("languages.%s.run_cmd is required", name)
		}
		if lang.SourceFile == "" {
			return fmt.Errorf("languages.%s.source_file is required", name)
		}
	}

	if _, ok := c.Languages[c.Engine.DefaultLanguage]; !ok {
		return fmt.Errorf("engine.default_language %q is not a configured language", c.Engine.DefaultLanguage)
	}

	return nil
}

// CompileTimeout returns the compile stage timeout as a duration
func (c *Config) CompileTimeout() time.Duration {
	return time.Duration(c.Engine.CompileTimeoutSec) * time.Second
}

// RunTimeout returns the run stage timeout as a duration
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Engine.RunTimeoutSec) * time.Second
}
