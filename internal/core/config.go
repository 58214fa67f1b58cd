package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/reviewdesk/internal/backend/commandstructure"
	"github.com/jo-hoe/reviewdesk/internal/backend/database"
	"github.com/jo-hoe/reviewdesk/internal/review"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type" toml:"type"`
	ConnectionString string `yaml:"connectionString" toml:"connectionString"`
}

type ServiceConfig struct {
	Port           int             `yaml:"port"`
	ImageFolder    string          `yaml:"imageFolder"`
	DataFolder     string          `yaml:"dataFolder"`
	MasterFileName string          `yaml:"masterFileName"`
	WatchImages    bool            `yaml:"watchImages"`
	Database       Database        `yaml:"database"`
	Commands       []CommandConfig `yaml:"commands"`
}

// tomlServiceConfig mirrors ServiceConfig for TOML, which has no inline
// tables: every key of a command table other than name is a parameter.
type tomlServiceConfig struct {
	Port           *int             `toml:"port"`
	ImageFolder    *string          `toml:"imageFolder"`
	DataFolder     *string          `toml:"dataFolder"`
	MasterFileName *string          `toml:"masterFileName"`
	WatchImages    *bool            `toml:"watchImages"`
	Database       *Database        `toml:"database"`
	Commands       []map[string]any `toml:"commands"`
}

// DefaultConfig mirrors the folder layout of a fresh checkout: images/ and data/
// next to the binary, previews rendered at 1024px without a cache.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:           8080,
		ImageFolder:    "images",
		DataFolder:     "data",
		MasterFileName: review.DefaultMasterFileName,
		WatchImages:    true,
		Commands: []CommandConfig{
			{Name: "PngConverterCommand", Params: map[string]any{}},
			{Name: "PixelScaleCommand", Params: map[string]any{"width": 1024}},
		},
	}
}

// LoadConfig loads configuration from the specified YAML or TOML file on top
// of DefaultConfig.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		err = unmarshalTOML(data, config)
	default:
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return config, nil
}

func unmarshalTOML(data []byte, config *ServiceConfig) error {
	var raw tomlServiceConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Port != nil {
		config.Port = *raw.Port
	}
	if raw.ImageFolder != nil {
		config.ImageFolder = *raw.ImageFolder
	}
	if raw.DataFolder != nil {
		config.DataFolder = *raw.DataFolder
	}
	if raw.MasterFileName != nil {
		config.MasterFileName = *raw.MasterFileName
	}
	if raw.WatchImages != nil {
		config.WatchImages = *raw.WatchImages
	}
	if raw.Database != nil {
		config.Database = *raw.Database
	}
	if raw.Commands != nil {
		config.Commands = make([]CommandConfig, 0, len(raw.Commands))
		for _, table := range raw.Commands {
			cmd := CommandConfig{Params: map[string]any{}}
			for key, value := range table {
				if key == "name" {
					cmd.Name, _ = value.(string)
					continue
				}
				cmd.Params[key] = value
			}
			config.Commands = append(config.Commands, cmd)
		}
	}
	return nil
}

// Validate checks the fields the service cannot start without.
func (config *ServiceConfig) Validate() error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}
	if strings.TrimSpace(config.ImageFolder) == "" {
		return fmt.Errorf("imageFolder must not be empty")
	}
	if strings.TrimSpace(config.DataFolder) == "" {
		return fmt.Errorf("dataFolder must not be empty")
	}
	if !strings.HasPrefix(config.MasterFileName, "reviews_") || !strings.HasSuffix(config.MasterFileName, ".csv") ||
		config.MasterFileName != filepath.Base(config.MasterFileName) {
		return fmt.Errorf("masterFileName must look like reviews_<name>.csv, got %q", config.MasterFileName)
	}
	switch config.Database.Type {
	case "", database.TypeSQLite, database.TypeRedis:
	default:
		return fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}
	return validateCommands(config.Commands)
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command: %s", cmd.Name)
		}
	}

	return nil
}

// commandConfigs converts the configured pipeline for the command invoker.
func (config *ServiceConfig) commandConfigs() []commandstructure.CommandConfig {
	configs := make([]commandstructure.CommandConfig, len(config.Commands))
	for i, cmd := range config.Commands {
		configs[i] = commandstructure.CommandConfig{Name: cmd.Name, Params: cmd.Params}
	}
	return configs
}

// pipelineSignature changes whenever the preview pipeline changes, so cached
// previews of an older pipeline are never served.
func (config *ServiceConfig) pipelineSignature() string {
	var b strings.Builder
	for _, cmd := range config.Commands {
		// fmt prints maps with sorted keys
		fmt.Fprintf(&b, "%s%v;", cmd.Name, cmd.Params)
	}
	return b.String()
}
