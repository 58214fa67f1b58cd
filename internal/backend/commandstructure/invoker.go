package commandstructure

import (
	"fmt"
	"log/slog"
)

// CommandInvoker runs a fixed list of commands, feeding each one the output
// of the previous one.
type CommandInvoker struct {
	commands []Command
}

func NewCommandInvoker(commands []Command) *CommandInvoker {
	return &CommandInvoker{commands: commands}
}

// NewCommandInvokerFromConfigs resolves every config against DefaultRegistry.
func NewCommandInvokerFromConfigs(configs []CommandConfig) (*CommandInvoker, error) {
	commands := make([]Command, 0, len(configs))
	for i, cfg := range configs {
		command, err := DefaultRegistry.Create(cfg.Name, cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("command %d (%s): %w", i, cfg.Name, err)
		}
		commands = append(commands, command)
	}
	return NewCommandInvoker(commands), nil
}

// Execute runs all commands in order
func (inv *CommandInvoker) Execute(imageData []byte) ([]byte, error) {
	current := imageData
	for i, command := range inv.commands {
		slog.Debug("CommandInvoker: executing command",
			"index", i, "command", command.Name(), "input_size_bytes", len(current))
		out, err := command.Execute(current)
		if err != nil {
			return nil, fmt.Errorf("command %s failed: %w", command.Name(), err)
		}
		current = out
	}
	return current, nil
}

// Len returns the number of commands in the pipeline
func (inv *CommandInvoker) Len() int {
	return len(inv.commands)
}

// ExecuteCommands is a convenience wrapper building and running an invoker
func ExecuteCommands(imageData []byte, configs []CommandConfig) ([]byte, error) {
	invoker, err := NewCommandInvokerFromConfigs(configs)
	if err != nil {
		return nil, err
	}
	return invoker.Execute(imageData)
}
