package commandstructure

// Command turns one encoded image into another, e.g. decoding a TIFF into a
// browser displayable PNG.
type Command interface {
	Name() string
	Execute(imageData []byte) ([]byte, error)
}

// CommandFactory builds a command from its configuration parameters
type CommandFactory func(params map[string]any) (Command, error)

// CommandConfig names a registered command and carries its parameters
type CommandConfig struct {
	Name   string
	Params map[string]any
}
