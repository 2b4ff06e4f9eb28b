package raw

import (
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
)

const toneLUTSize = 4096

var (
	toneOnce sync.Once
	toneLUT  [toneLUTSize]uint8
)

// srgbLUT maps linear [0,1] to 8-bit sRGB.
func srgbLUT() *[toneLUTSize]uint8 {
	toneOnce.Do(func() {
		for i := range toneLUT {
			v := float64(i) / (toneLUTSize - 1)
			if v <= 0.0031308 {
				v *= 12.92
			} else {
				v = 1.055*math.Pow(v, 1/2.4) - 0.055
			}
			toneLUT[i] = uint8(math.Round(math.Min(1, math.Max(0, v)) * 255))
		}
	})
	return &toneLUT
}

// develop runs the fixed pipeline: black/white normalization, bilinear
// demosaic, white balance and the sRGB tone curve. The loop is iterative
// with a constant stack depth regardless of sensor size.
func develop(s *sensor) *image.NRGBA {
	w, h := s.width, s.height
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	lut := srgbLUT()
	scale := 1 / (s.white - s.black)

	norm := func(x, y int) float64 {
		v := (float64(s.samples[y*w+x]) - s.black) * scale
		if v < 0 {
			return 0
		}
		return v
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [3]float64
			var cnt [3]int

			own := s.pattern[y&1][x&1]
			sum[own] = norm(x, y)
			cnt[own] = 1

			// Average same-color neighbors in the 3x3 window for the two
			// missing channels. On a 2x2 Bayer tile this is bilinear.
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if (dx == 0 && dy == 0) || nx < 0 || nx >= w {
						continue
					}
					c := s.pattern[ny&1][nx&1]
					if c == own {
						continue
					}
					sum[c] += norm(nx, ny)
					cnt[c]++
				}
			}

			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				var v float64
				if cnt[c] > 0 {
					v = sum[c] / float64(cnt[c]) * s.wb[c]
				}
				if v > 1 {
					v = 1
				}
				img.Pix[i+c] = lut[int(v*(toneLUTSize-1)+0.5)]
			}
			img.Pix[i+3] = 0xff
		}
	}

	return img
}

// orient applies an EXIF/TIFF orientation value.
func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}
