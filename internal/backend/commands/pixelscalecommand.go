package commands

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/jo-hoe/reviewdesk/internal/backend/commandstructure"
	xdraw "golang.org/x/image/draw"
)

const (
	interpolationNearest    = "nearest"
	interpolationCatmullRom = "catmullrom"
)

// PixelScaleParams represents typed parameters for pixel scale command
type PixelScaleParams struct {
	Height        *int // Optional: if nil, will be calculated from width
	Width         *int // Optional: if nil, will be calculated from height
	Interpolation string
}

// NewPixelScaleParamsFromMap creates PixelScaleParams from a generic map
func NewPixelScaleParamsFromMap(params map[string]any) (*PixelScaleParams, error) {
	_, hasHeight := params["height"]
	_, hasWidth := params["width"]

	if !hasHeight && !hasWidth {
		return nil, fmt.Errorf("at least one of 'height' or 'width' must be specified")
	}

	result := &PixelScaleParams{}

	if hasHeight {
		height := commandstructure.GetIntParam(params, "height", 0)
		if height <= 0 {
			return nil, fmt.Errorf("height must be positive, got %d", height)
		}
		result.Height = &height
	}

	if hasWidth {
		width := commandstructure.GetIntParam(params, "width", 0)
		if width <= 0 {
			return nil, fmt.Errorf("width must be positive, got %d", width)
		}
		result.Width = &width
	}

	interpolation := strings.ToLower(commandstructure.GetStringParam(params, "interpolation", interpolationCatmullRom))
	switch interpolation {
	case interpolationNearest, interpolationCatmullRom:
		result.Interpolation = interpolation
	default:
		return nil, fmt.Errorf("invalid interpolation: %s (must be '%s' or '%s')",
			interpolation, interpolationNearest, interpolationCatmullRom)
	}

	return result, nil
}

// PixelScaleCommand shrinks an image to fit the configured bounding box while
// preserving its aspect ratio. Images already inside the box are returned
// unchanged; the command never upscales.
type PixelScaleCommand struct {
	name   string
	params *PixelScaleParams
}

// NewPixelScaleCommand creates a new pixel scale command from configuration parameters
func NewPixelScaleCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewPixelScaleParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &PixelScaleCommand{
		name:   "PixelScaleCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *PixelScaleCommand) Name() string {
	return c.name
}

// Execute scales the image down to the target dimensions
func (c *PixelScaleCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	targetWidth, targetHeight := c.targetDimensions(bounds.Dx(), bounds.Dy())
	if targetWidth >= bounds.Dx() && targetHeight >= bounds.Dy() {
		slog.Debug("PixelScaleCommand: image already within bounds",
			"width", bounds.Dx(), "height", bounds.Dy())
		if hasCorrectPngSignature(imageData) {
			return imageData, nil
		}
		return encodePNG(img)
	}

	slog.Debug("PixelScaleCommand: scaling image",
		"original_width", bounds.Dx(),
		"original_height", bounds.Dy(),
		"target_width", targetWidth,
		"target_height", targetHeight,
		"interpolation", c.params.Interpolation)

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	if c.params.Interpolation == interpolationNearest {
		scaleNearest(dst, img)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	}

	return encodePNG(dst)
}

// targetDimensions fits (w, h) into the configured box, never exceeding the
// original size and never collapsing an axis to zero.
func (c *PixelScaleCommand) targetDimensions(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := 1.0
	if c.params.Width != nil {
		scale = min(scale, float64(*c.params.Width)/float64(w))
	}
	if c.params.Height != nil {
		scale = min(scale, float64(*c.params.Height)/float64(h))
	}
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}

// scaleNearest fills dst with nearest-neighbour samples of src, one row per worker step.
func scaleNearest(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	dw, dh := dst.Bounds().Dx(), dst.Bounds().Dy()
	xMap := make([]int, dw)
	for x := range xMap {
		xMap[x] = sb.Min.X + min(sb.Dx()-1, x*sb.Dx()/dw)
	}
	parallelFor(dh, func(y int) {
		srcY := sb.Min.Y + min(sb.Dy()-1, y*sb.Dy()/dh)
		for x := 0; x < dw; x++ {
			dst.Set(x, y, src.At(xMap[x], srcY))
		}
	})
}

// GetHeight returns the configured height (may be nil if not specified)
func (c *PixelScaleCommand) GetHeight() *int {
	return c.params.Height
}

// GetWidth returns the configured width (may be nil if not specified)
func (c *PixelScaleCommand) GetWidth() *int {
	return c.params.Width
}

// GetParams returns the typed parameters
func (c *PixelScaleCommand) GetParams() *PixelScaleParams {
	return c.params
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("PixelScaleCommand", NewPixelScaleCommand); err != nil {
		panic(fmt.Sprintf("failed to register PixelScaleCommand: %v", err))
	}
}
