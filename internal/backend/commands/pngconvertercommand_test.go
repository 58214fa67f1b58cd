package commands

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/jo-hoe/reviewdesk/internal/backend/commandstructure"
)

func TestNewPngConverterCommand_Defaults(t *testing.T) {
	command, err := NewPngConverterCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	converterCmd, ok := command.(*PngConverterCommand)
	if !ok {
		t.Fatal("Expected command to be *PngConverterCommand")
	}
	if converterCmd.Name() != "PngConverterCommand" {
		t.Errorf("Expected name 'PngConverterCommand', got '%s'", converterCmd.Name())
	}
	if converterCmd.svgFallbackWidth != defaultSvgFallbackSize || converterCmd.svgFallbackHeight != defaultSvgFallbackSize {
		t.Errorf("Expected default SVG fallback %d, got %dx%d",
			defaultSvgFallbackSize, converterCmd.svgFallbackWidth, converterCmd.svgFallbackHeight)
	}
}

func TestNewPngConverterCommand_InvalidFallback(t *testing.T) {
	_, err := NewPngConverterCommand(map[string]any{"svgFallbackWidth": -1})
	if err == nil {
		t.Error("Expected error for negative SVG fallback width")
	}
}

func TestPngConverterCommand_Execute_InvalidImage(t *testing.T) {
	command, err := NewPngConverterCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	_, err = command.Execute([]byte("not a valid image"))
	if err == nil {
		t.Error("Expected error for invalid image data, got nil")
	}
}

func TestPngConverterCommand_Execute_TruncatedPng(t *testing.T) {
	command, err := NewPngConverterCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	// Signature only; the image body is missing
	truncated := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}
	if _, err := command.Execute(truncated); err == nil {
		t.Error("Expected error for truncated PNG")
	}
}

func TestPngConverterCommand_Execute_PngPassThrough(t *testing.T) {
	command, err := NewPngConverterCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	input := gradientPNG(t, 32, 16)
	result, err := command.Execute(input)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !bytes.Equal(input, result) {
		t.Error("Expected result to be identical to input for PNG image")
	}
}

func TestPngConverterCommand_Execute_RasterFormats(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{"JPEG", func(t *testing.T) []byte { return gradientJPEG(t, 40, 20) }},
		{"GIF", func(t *testing.T) []byte { return gradientGIF(t, 40, 20) }},
		{"BMP", func(t *testing.T) []byte { return gradientBMP(t, 40, 20) }},
	}

	command, err := NewPngConverterCommand(map[string]any{})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := command.Execute(tt.data(t))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(result))
			if err != nil {
				t.Fatalf("Result is not valid PNG: %v", err)
			}
			if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
				t.Errorf("Expected 40x20, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
			}
		})
	}
}

func TestPngConverterCommand_RegisteredInDefaultRegistry(t *testing.T) {
	if !commandstructure.DefaultRegistry.IsRegistered("PngConverterCommand") {
		t.Error("Expected PngConverterCommand to be registered in DefaultRegistry")
	}

	command, err := commandstructure.DefaultRegistry.Create("PngConverterCommand", nil)
	if err != nil {
		t.Fatalf("Failed to create command via registry: %v", err)
	}
	if _, ok := command.(*PngConverterCommand); !ok {
		t.Fatal("Expected command to be *PngConverterCommand")
	}
}

func TestHasCorrectPngSignature(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{
			name:     "Valid PNG signature",
			data:     []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
			expected: true,
		},
		{
			name:     "Invalid signature",
			data:     []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			expected: false,
		},
		{
			name:     "Too short",
			data:     []byte{0x89, 'P', 'N', 'G'},
			expected: false,
		},
		{
			name:     "Empty data",
			data:     []byte{},
			expected: false,
		},
		{
			name:     "JPEG signature",
			data:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := hasCorrectPngSignature(tt.data); result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestPngConverterCommand_RenderSVG(t *testing.T) {
	tests := []struct {
		name           string
		svg            string
		expectedWidth  int
		expectedHeight int
	}{
		{
			name:           "Fallback size",
			svg:            `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100"><rect width="100" height="100" fill="red"/></svg>`,
			expectedWidth:  64,
			expectedHeight: 48,
		},
		{
			name:           "Explicit size",
			svg:            `<svg xmlns="http://www.w3.org/2000/svg" width="30px" height='20'><rect width="30" height="20" fill="blue"/></svg>`,
			expectedWidth:  30,
			expectedHeight: 20,
		},
	}

	command, err := NewPngConverterCommand(map[string]any{
		"svgFallbackWidth":  64,
		"svgFallbackHeight": 48,
	})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := command.Execute([]byte(tt.svg))
			if err != nil {
				t.Fatalf("Execute failed for SVG: %v", err)
			}
			img, err := png.Decode(bytes.NewReader(result))
			if err != nil {
				t.Fatalf("Rendered SVG result is not valid PNG: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.expectedWidth || b.Dy() != tt.expectedHeight {
				t.Fatalf("Expected PNG dimensions %dx%d, got %dx%d",
					tt.expectedWidth, tt.expectedHeight, b.Dx(), b.Dy())
			}
		})
	}
}
