package commands

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradientImage(w, h)); err != nil {
		t.Fatalf("failed to encode PNG fixture: %v", err)
	}
	return buf.Bytes()
}

func gradientJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradientImage(w, h), nil); err != nil {
		t.Fatalf("failed to encode JPEG fixture: %v", err)
	}
	return buf.Bytes()
}

func gradientGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, gradientImage(w, h), nil); err != nil {
		t.Fatalf("failed to encode GIF fixture: %v", err)
	}
	return buf.Bytes()
}

func gradientBMP(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, gradientImage(w, h)); err != nil {
		t.Fatalf("failed to encode BMP fixture: %v", err)
	}
	return buf.Bytes()
}
