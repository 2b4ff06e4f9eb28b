package raw

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
)

// maxScanCandidates bounds the SOI marker scan on files without a usable
// TIFF structure.
const maxScanCandidates = 64

var errNoPreview = errors.New("no embedded JPEG preview")

// embeddedCandidates lists offsets of JPEG streams announced by the TIFF
// structure (JPEGInterchangeFormat, or JPEG-compressed non-CFA strips).
func (c *container) embeddedCandidates() []int {
	var out []int
	for _, dir := range c.ifds {
		if off := dir.uint(tagJPEGInterchangeFormat, 0); off > 0 && dir.uint(tagJPEGInterchangeLength, 0) > 0 {
			out = append(out, int(off))
		}
		comp := dir.uint(tagCompression, 0)
		if (comp == compressionJPEG || comp == compressionOldJPEG) && dir.uint(tagPhotometric, 0) != photometricCFA &&
			dir.uint(tagPhotometric, 0) != photometricLinearRaw {
			if offs := dir.uints(tagStripOffsets); len(offs) == 1 {
				out = append(out, int(offs[0]))
			}
		}
	}
	return out
}

// scanSOI finds JPEG start-of-image markers anywhere in data.
func scanSOI(data []byte) []int {
	var out []int
	marker := []byte{0xFF, 0xD8, 0xFF}
	for pos := 0; len(out) < maxScanCandidates; {
		i := bytes.Index(data[pos:], marker)
		if i < 0 {
			break
		}
		out = append(out, pos+i)
		pos += i + len(marker)
	}
	return out
}

// findEmbeddedJPEG returns the offset and pixel area of the embedded JPEG
// with the most pixels, or -1 when there is none.
func findEmbeddedJPEG(data []byte, c *container) (offset, area int) {
	var candidates []int
	if c != nil {
		candidates = c.embeddedCandidates()
	}
	candidates = append(candidates, scanSOI(data)...)

	best, bestArea := -1, 0
	seen := make(map[int]bool, len(candidates))
	for _, off := range candidates {
		if off < 0 || off >= len(data) || seen[off] {
			continue
		}
		seen[off] = true

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data[off:]))
		if err != nil {
			continue
		}
		if a := cfg.Width * cfg.Height; a > bestArea {
			best, bestArea = off, a
		}
	}
	return best, bestArea
}

// decodeEmbeddedJPEG decodes the JPEG at offset. When the file has no TIFF
// structure the JPEG's own EXIF orientation is used.
func decodeEmbeddedJPEG(data []byte, offset int, c *container) (image.Image, error) {
	if offset < 0 {
		return nil, errNoPreview
	}
	return imaging.Decode(bytes.NewReader(data[offset:]), imaging.AutoOrientation(c == nil))
}
