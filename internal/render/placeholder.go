// Package render produces synthetic screenshot frames for the cases where no
// real capture is possible: driver failures and placeholder (degraded) mode.
// The frames go through the same encode path as real captures so the stream
// never stalls on an error.
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	lightGray = color.NRGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}
	red       = color.NRGBA{R: 0xcc, G: 0x00, B: 0x00, A: 0xff}
	black     = color.NRGBA{A: 0xff}
	gray      = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	blue      = color.NRGBA{R: 0x00, G: 0x33, B: 0xaa, A: 0xff}
)

// ErrorScreenshot renders the frame shown when a real capture fails.
func ErrorScreenshot() ([]byte, error) {
	img := imaging.New(800, 600, lightGray)
	drawLabel(img, 50, 60, red, "Browser Error - Check Logs")
	drawLabel(img, 50, 110, black, "Screenshot failed to capture")
	return encodeJPEG(img)
}

// PlaceholderScreenshot renders the frame streamed while the browser is in
// placeholder (degraded) mode.
func PlaceholderScreenshot(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	img := imaging.New(width, height, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	drawLabel(img, 50, 60, blue, "Placeholder Browser - Driver Not Available")
	drawLabel(img, 50, 110, black, "This is a synthetic frame")
	drawLabel(img, 50, 160, gray, "Browser functionality is limited in placeholder mode")
	drawBox(img, image.Rect(50, 200, 500, 300), black)
	drawLabel(img, 60, 230, black, "Placeholder Browser Window")
	return encodeJPEG(img)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawLabel(dst draw.Image, x, y int, c color.Color, text string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawBox outlines a rectangle with a 2px border.
func drawBox(dst draw.Image, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+2), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-2, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+2, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-2, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}
