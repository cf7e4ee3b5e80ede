// Package qrimage renders QR code payloads as grayscale PNG images.
package qrimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"rsc.io/qr"
)

const (
	// DefaultModuleSize is the edge length in pixels of one QR module.
	DefaultModuleSize = 8

	// DefaultQuietZone is the white border in modules required by readers.
	DefaultQuietZone = 4
)

// EncodingError reports a payload that cannot be represented as a QR code,
// typically because it exceeds the capacity of the largest symbol.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding qr code: %v", e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// SerializationError reports a failure to write the rendered raster as PNG.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("writing png: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Renderer turns payloads into PNG images. The zero value is not usable; use
// New.
type Renderer struct {
	Level      qr.Level
	ModuleSize int
	QuietZone  int
}

// New returns a Renderer using error correction level M and the default
// geometry.
func New() *Renderer {
	return &Renderer{
		Level:      qr.M,
		ModuleSize: DefaultModuleSize,
		QuietZone:  DefaultQuietZone,
	}
}

// Render encodes payload and returns it as an 8-bit grayscale PNG. The output
// is byte-identical for identical input.
func (r *Renderer) Render(payload string) ([]byte, error) {
	code, err := qr.Encode(payload, r.Level)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}

	img := r.rasterize(code)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &SerializationError{Err: err}
	}

	return buf.Bytes(), nil
}

func (r *Renderer) rasterize(code *qr.Code) *image.Gray {
	scale := max(r.ModuleSize, 1)
	quiet := max(r.QuietZone, 0)

	side := (code.Size + 2*quiet) * scale
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	black := color.Gray{Y: 0}
	for y := 0; y < code.Size; y++ {
		for x := 0; x < code.Size; x++ {
			if !code.Black(x, y) {
				continue
			}
			x0 := (x + quiet) * scale
			y0 := (y + quiet) * scale
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetGray(x0+dx, y0+dy, black)
				}
			}
		}
	}

	return img
}

// Render encodes payload with the default Renderer.
func Render(payload string) ([]byte, error) {
	return New().Render(payload)
}
