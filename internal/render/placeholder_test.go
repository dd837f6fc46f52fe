package render

import (
	"bytes"
	"image/jpeg"
	"testing"
)

func TestErrorScreenshotDecodes(t *testing.T) {
	data, err := ErrorScreenshot()
	if err != nil {
		t.Fatalf("ErrorScreenshot() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := img.Bounds().Dx(); got != 800 {
		t.Fatalf("width = %d, want 800", got)
	}
}

func TestPlaceholderScreenshotDimensions(t *testing.T) {
	data, err := PlaceholderScreenshot(640, 480)
	if err != nil {
		t.Fatalf("PlaceholderScreenshot() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 640 || img.Bounds().Dy() != 480 {
		t.Fatalf("bounds = %v, want 640x480", img.Bounds())
	}
}

func TestPlaceholderScreenshotDefaultsOnBadSize(t *testing.T) {
	data, err := PlaceholderScreenshot(0, -1)
	if err != nil {
		t.Fatalf("PlaceholderScreenshot() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 1920 || img.Bounds().Dy() != 1080 {
		t.Fatalf("bounds = %v, want 1920x1080", img.Bounds())
	}
}
