// Package config loads the judge core's YAML configuration: the
// container image and resource ceilings, the restore/test command
// templates, and logging sinks.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tracepoint/internal/logger"
	"tracepoint/internal/sandboxcmd"
	"tracepoint/internal/sandboxspec"
)

const (
	defaultImage      = "tracepoint-dotnet-test:latest"
	defaultUser       = "1000:1000"
	defaultCPUs       = "1"
	defaultMemoryMB   = 512
	defaultPIDsLimit  = 128
	defaultNamePrefix = "tracepoint"
	defaultRestoreCmd = "dotnet restore"
	defaultTestCmd    = `dotnet test --no-restore --logger "trx;LogFileName=results.trx"`
)

// SandboxConfig is the YAML-facing shape of sandboxcmd.Config.
type SandboxConfig struct {
	Image               string `yaml:"image"`
	User                string `yaml:"user"`
	CPUs                string `yaml:"cpus"`
	MemoryMB            int64  `yaml:"memoryMB"`
	PIDsLimit           int64  `yaml:"pidsLimit"`
	ContainerNamePrefix string `yaml:"containerNamePrefix"`
	RestoreCommand      string `yaml:"restoreCommand"`
	TestCommand         string `yaml:"testCommand"`
}

// AppConfig is the judge core's top-level configuration document.
type AppConfig struct {
	Logger  logger.Config `yaml:"logger"`
	Sandbox SandboxConfig `yaml:"sandbox"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// Load reads path as YAML and applies defaults, tolerating a missing
// file (the judge core runs with sane defaults out of the box).
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := loadYAML(path, &cfg); err != nil {
				return nil, err
			}
		}
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}
	if cfg.Sandbox.Image == "" {
		cfg.Sandbox.Image = defaultImage
	}
	if cfg.Sandbox.User == "" {
		cfg.Sandbox.User = defaultUser
	}
	if cfg.Sandbox.CPUs == "" {
		cfg.Sandbox.CPUs = defaultCPUs
	}
	if cfg.Sandbox.MemoryMB == 0 {
		cfg.Sandbox.MemoryMB = defaultMemoryMB
	}
	if cfg.Sandbox.PIDsLimit == 0 {
		cfg.Sandbox.PIDsLimit = defaultPIDsLimit
	}
	if cfg.Sandbox.ContainerNamePrefix == "" {
		cfg.Sandbox.ContainerNamePrefix = defaultNamePrefix
	}
	if cfg.Sandbox.RestoreCommand == "" {
		cfg.Sandbox.RestoreCommand = defaultRestoreCmd
	}
	if cfg.Sandbox.TestCommand == "" {
		cfg.Sandbox.TestCommand = defaultTestCmd
	}
}

// SandboxBuilderConfig converts the YAML-facing SandboxConfig into the
// sandboxcmd.Config the SandboxCommandBuilder expects.
func (c AppConfig) SandboxBuilderConfig() sandboxcmd.Config {
	return sandboxcmd.Config{
		Image:               c.Sandbox.Image,
		User:                c.Sandbox.User,
		ContainerNamePrefix: c.Sandbox.ContainerNamePrefix,
		RestoreCommand:      c.Sandbox.RestoreCommand,
		TestCommand:         c.Sandbox.TestCommand,
		Limits: sandboxspec.ResourceLimits{
			CPUs:      c.Sandbox.CPUs,
			MemoryMB:  c.Sandbox.MemoryMB,
			PIDsLimit: c.Sandbox.PIDsLimit,
		},
	}
}
