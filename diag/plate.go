package diag

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/oyin-bo/mavity"
)

// plateOversample is the splat-resolution multiplier before the final
// downscale. Splatting at higher resolution and scaling down antialiases the
// plate without a blur pass.
const plateOversample = 4

// DensityPlate renders a top-down particle density image of the layout. It
// is the debug frame dump for eyeballing drift: invariant corruption that
// escapes the checker usually shows up here as smearing or collapse.
func DensityPlate(s *mavity.Snapshot, size int) *image.Gray {
	hi := splat(s, size*plateOversample)
	out := image.NewGray(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), hi, hi.Bounds(), xdraw.Src, nil)
	return out
}

// WritePlate encodes the density plate as PNG.
func WritePlate(w io.Writer, s *mavity.Snapshot, size int) error {
	return png.Encode(w, DensityPlate(s, size))
}

func splat(s *mavity.Snapshot, size int) *image.Gray {
	// Fit the plate to the layout's extent, with a small margin.
	var maxR float64
	for _, p := range s.Pos {
		r := math.Max(math.Abs(float64(p.X())), math.Abs(float64(p.Y())))
		if r > maxR {
			maxR = r
		}
	}
	if maxR == 0 {
		maxR = 1
	}
	scale := float64(size-1) / (2 * maxR * 1.05)

	counts := make([]int, size*size)
	peak := 1
	for _, p := range s.Pos {
		x := int((float64(p.X()) + maxR*1.05) * scale)
		y := int((float64(p.Y()) + maxR*1.05) * scale)
		if x < 0 || x >= size || y < 0 || y >= size {
			continue
		}
		counts[y*size+x]++
		if counts[y*size+x] > peak {
			peak = counts[y*size+x]
		}
	}

	img := image.NewGray(image.Rect(0, 0, size, size))
	for i, c := range counts {
		if c == 0 {
			continue
		}
		// Log response keeps sparse regions visible next to dense cores.
		v := math.Log1p(float64(c)) / math.Log1p(float64(peak))
		img.SetGray(i%size, i/size, color.Gray{Y: uint8(v * 255)})
	}
	return img
}
