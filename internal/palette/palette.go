// SPDX-License-Identifier: MIT
package palette

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/lucasb-eyer/go-colorful"
)

// Size is the number of palette entries the dither material takes.
const Size = 16

// ErrDimensions is returned for images that are not 1 pixel high and at most
// Size pixels wide.
var ErrDimensions = errors.New("palette: image must be 1 pixel high and 1 to 16 pixels wide")

// Color is an HSL entry with hue in whole degrees [0,360) and saturation and
// lightness in [0,1].
type Color struct {
	H, S, L float64
}

// DefaultColor fills entries the image does not provide.
var DefaultColor = Color{H: 180, S: 1, L: 0.5}

// Palette is the fixed-size dither palette.
type Palette [Size]Color

// Default returns a palette of DefaultColor.
func Default() Palette {
	var p Palette
	for i := range p {
		p[i] = DefaultColor
	}
	return p
}

// Load reads a PNG palette strip from path.
func Load(path string) (Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return Palette{}, fmt.Errorf("failed to open palette: %w", err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return Palette{}, fmt.Errorf("palette %s: %w", path, err)
	}
	return p, nil
}

// Decode converts each pixel of a PNG strip to HSL, ignoring alpha, and
// pads the palette with DefaultColor. Images of the wrong shape are
// rejected rather than truncated.
func Decode(r io.Reader) (Palette, error) {
	img, err := png.Decode(r)
	if err != nil {
		return Palette{}, fmt.Errorf("failed to decode png: %w", err)
	}
	return FromImage(img)
}

// FromImage builds a palette from an already decoded image.
func FromImage(img image.Image) (Palette, error) {
	b := img.Bounds()
	if b.Dy() != 1 || b.Dx() < 1 || b.Dx() > Size {
		return Palette{}, fmt.Errorf("%w, got %dx%d", ErrDimensions, b.Dx(), b.Dy())
	}

	p := Default()
	for i := range b.Dx() {
		px := color.NRGBAModel.Convert(img.At(b.Min.X+i, b.Min.Y)).(color.NRGBA)
		c := colorful.Color{
			R: float64(px.R) / 255,
			G: float64(px.G) / 255,
			B: float64(px.B) / 255,
		}
		h, s, l := c.Hsl()
		h = math.Round(h)
		if h >= 360 {
			h -= 360
		}
		p[i] = Color{H: h, S: s, L: l}
	}
	return p, nil
}

// Flatten lays the palette out as H,S,L triples for a material uniform.
func (p Palette) Flatten() []float64 {
	out := make([]float64, 0, 3*Size)
	for _, c := range p {
		out = append(out, c.H, c.S, c.L)
	}
	return out
}

// RGBA converts the entry back to an opaque 8-bit colour.
func (c Color) RGBA() color.RGBA {
	r, g, b := colorful.Hsl(c.H, c.S, c.L).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
