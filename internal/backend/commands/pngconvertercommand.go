package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"strings"

	"github.com/jo-hoe/reviewdesk/internal/backend/commandstructure"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	defaultSvgFallbackSize = 1024
	svgSniffLimit          = 4096
	svgTagLimit            = 8192
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// hasCorrectPngSignature checks whether the provided data begins with a valid PNG signature
func hasCorrectPngSignature(data []byte) bool {
	return len(data) >= len(pngSignature) && bytes.Equal(data[:len(pngSignature)], pngSignature)
}

// PngConverterCommand makes any supported image browser displayable by
// converting it to PNG. Supported inputs: PNG, JPEG, GIF, BMP, TIFF, WebP, SVG.
type PngConverterCommand struct {
	name              string
	svgFallbackWidth  int
	svgFallbackHeight int
}

// NewPngConverterCommand creates a new PNG converter command
func NewPngConverterCommand(params map[string]any) (commandstructure.Command, error) {
	w := commandstructure.GetIntParam(params, "svgFallbackWidth", defaultSvgFallbackSize)
	h := commandstructure.GetIntParam(params, "svgFallbackHeight", defaultSvgFallbackSize)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg fallback size must be positive, got %dx%d", w, h)
	}

	return &PngConverterCommand{
		name:              "PngConverterCommand",
		svgFallbackWidth:  w,
		svgFallbackHeight: h,
	}, nil
}

// Name returns the command name
func (c *PngConverterCommand) Name() string {
	return c.name
}

func (c *PngConverterCommand) Execute(imageData []byte) ([]byte, error) {
	slog.Debug("PngConverterCommand: start", "input_size_bytes", len(imageData))

	// A PNG is passed through untouched, but only once it decodes cleanly.
	if hasCorrectPngSignature(imageData) {
		if _, err := png.Decode(bytes.NewReader(imageData)); err != nil {
			slog.Debug("PngConverterCommand: PNG signature present but decode failed", "error", err)
			return nil, fmt.Errorf("failed to decode PNG image: %w", err)
		}
		return imageData, nil
	}

	if isSVGData(imageData) {
		return c.convertSVG(imageData)
	}

	img, currentFormat, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Debug("PngConverterCommand: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	slog.Debug("PngConverterCommand: decoded raster image",
		"current_format", currentFormat,
		"orig_width", img.Bounds().Dx(),
		"orig_height", img.Bounds().Dy())

	out, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	slog.Debug("PngConverterCommand: raster conversion complete", "output_size_bytes", len(out))
	return out, nil
}

func (c *PngConverterCommand) convertSVG(imageData []byte) ([]byte, error) {
	w, h, ok := parseSvgExplicitSize(imageData)
	if !ok {
		w, h = c.svgFallbackWidth, c.svgFallbackHeight
		slog.Debug("PngConverterCommand: SVG lacks explicit size; using fallback", "width", w, "height", h)
	}
	out, err := renderSVGToPNG(imageData, w, h)
	if err != nil {
		return nil, fmt.Errorf("failed to render SVG to PNG: %w", err)
	}
	return out, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("PngConverterCommand", NewPngConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register PngConverterCommand: %v", err))
	}
}

// parseSvgExplicitSize extracts the width and height attributes of the root
// <svg> tag. viewBox is deliberately ignored.
func parseSvgExplicitSize(data []byte) (int, int, bool) {
	n := min(len(data), svgTagLimit)
	s := strings.ToLower(string(data[:n]))
	i := strings.Index(s, "<svg")
	if i < 0 {
		return 0, 0, false
	}
	tag := s[i:]
	if j := strings.Index(tag, ">"); j >= 0 {
		tag = tag[:j]
	}

	w, wOk := parseNumericAttr(tag, "width")
	h, hOk := parseNumericAttr(tag, "height")
	if wOk && hOk {
		return w, h, true
	}
	return 0, 0, false
}

// parseNumericAttr reads the leading integer of a quoted attribute value,
// e.g. width="123px" yields 123.
func parseNumericAttr(tag, attr string) (int, bool) {
	pos := strings.Index(tag, " "+attr+"=")
	if pos < 0 {
		return 0, false
	}
	rest := tag[pos+len(attr)+2:]
	if rest == "" || (rest[0] != '"' && rest[0] != '\'') {
		return 0, false
	}
	quote := rest[0]
	val := rest[1:]
	if end := strings.IndexByte(val, quote); end >= 0 {
		val = val[:end]
	}

	num := 0
	found := false
	for i := 0; i < len(val); i++ {
		ch := val[i]
		if ch < '0' || ch > '9' {
			break
		}
		found = true
		num = num*10 + int(ch-'0')
	}
	if !found || num <= 0 {
		return 0, false
	}
	return num, true
}

// isSVGData performs a lightweight detection of SVG content from raw bytes.
func isSVGData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	n := min(len(data), svgSniffLimit)
	header := bytes.ToLower(bytes.TrimSpace(data[:n]))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte(`xmlns="http://www.w3.org/2000/svg"`)) ||
		bytes.Contains(header, []byte(`xmlns='http://www.w3.org/2000/svg'`))
}

// renderSVGToPNG rasterizes an SVG onto a white canvas of the given size.
func renderSVGToPNG(svgData []byte, targetW, targetH int) ([]byte, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, fmt.Errorf("invalid target dimensions for SVG rendering: %dx%d", targetW, targetH)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	dst := createTargetCanvas(targetW, targetH, color.RGBA{255, 255, 255, 255})
	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	dasher := rasterx.NewDasher(targetW, targetH, scanner)
	icon.Draw(dasher, 1.0)

	return encodePNG(dst)
}

func createTargetCanvas(w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return buf.Bytes(), nil
}
