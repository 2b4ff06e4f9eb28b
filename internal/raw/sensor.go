package raw

import (
	"errors"
	"fmt"
)

// maxSensorPixels bounds allocations for corrupt headers.
const maxSensorPixels = 250_000_000

// sensor is the undemosaiced CFA plane of a RAW file.
type sensor struct {
	width, height int
	samples       []uint16
	// pattern[y%2][x%2] is the color (0=R, 1=G, 2=B) at that site.
	pattern     [2][2]uint8
	black       float64
	white       float64
	wb          [3]float64
	orientation int
}

// findSensorIFD returns the largest single-sample CFA image stored
// uncompressed or as lossless JPEG, in strips or tiles.
func (c *container) findSensorIFD() (ifd, error) {
	var best ifd
	var bestArea uint64
	var unsupported uint32

	for _, dir := range c.ifds {
		if dir.uint(tagPhotometric, 0) != photometricCFA {
			continue
		}
		switch comp := dir.uint(tagCompression, compressionNone); comp {
		case compressionNone, compressionJPEG:
		default:
			unsupported = comp
			continue
		}
		if dir.uint(tagSamplesPerPixel, 1) != 1 {
			continue
		}
		area := uint64(dir.uint(tagImageWidth, 0)) * uint64(dir.uint(tagImageLength, 0))
		if area > bestArea {
			best, bestArea = dir, area
		}
	}

	if best == nil {
		if unsupported != 0 {
			return nil, fmt.Errorf("%w: CFA compression %d", ErrUnsupported, unsupported)
		}
		return nil, fmt.Errorf("%w: no CFA image directory", ErrUnsupported)
	}
	return best, nil
}

func (c *container) readSensor() (*sensor, error) {
	dir, err := c.findSensorIFD()
	if err != nil {
		return nil, err
	}

	width := int(dir.uint(tagImageWidth, 0))
	height := int(dir.uint(tagImageLength, 0))
	bits := int(dir.uint(tagBitsPerSample, 16))
	if width <= 0 || height <= 0 {
		return nil, errors.New("invalid sensor dimensions")
	}
	if uint64(width)*uint64(height) > maxSensorPixels {
		return nil, fmt.Errorf("sensor %dx%d exceeds size limit", width, height)
	}
	if bits < 8 || bits > 16 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
	}

	var samples []uint16
	_, tiled := dir[tagTileWidth]
	switch {
	case dir.uint(tagCompression, compressionNone) == compressionJPEG:
		samples, err = c.readTiles(dir, width, height, decodeLosslessTile)
	case tiled:
		samples, err = c.readTiles(dir, width, height, func(payload []byte, tw, th int) ([]uint16, error) {
			return unpack(payload, tw, th, bits, isLittle(c))
		})
	default:
		var payload []byte
		payload, err = c.stripData(dir)
		if err == nil {
			samples, err = unpack(payload, width, height, bits, isLittle(c))
		}
	}
	if err != nil {
		return nil, err
	}
	if table := dir.uints(tagLinearizationTable); len(table) > 0 {
		linearize(samples, table)
	}

	s := &sensor{
		width:       width,
		height:      height,
		samples:     samples,
		pattern:     cfaPattern(dir),
		white:       float64(uint32(1)<<bits - 1),
		wb:          [3]float64{1, 1, 1},
		orientation: int(c.ifds[0].uint(tagOrientation, 1)),
	}

	if black := dir.floats(tagBlackLevel); len(black) > 0 {
		var sum float64
		for _, v := range black {
			sum += v
		}
		s.black = sum / float64(len(black))
	}
	if white := dir.uints(tagWhiteLevel); len(white) > 0 && white[0] > 0 {
		s.white = float64(white[0])
	}
	if s.white <= s.black {
		return nil, fmt.Errorf("white level %.0f not above black level %.0f", s.white, s.black)
	}

	// AsShotNeutral usually lives in IFD0 rather than the raw SubIFD.
	neutral := dir.floats(tagAsShotNeutral)
	if len(neutral) < 3 {
		neutral = c.ifds[0].floats(tagAsShotNeutral)
	}
	if len(neutral) >= 3 && neutral[0] > 0 && neutral[1] > 0 && neutral[2] > 0 {
		s.wb = [3]float64{neutral[1] / neutral[0], 1, neutral[1] / neutral[2]}
	}

	return s, nil
}

// tileDecoder turns one compressed tile or strip into tw*th samples in
// row-major order. It may return more samples than the tile holds.
type tileDecoder func(payload []byte, tw, th int) ([]uint16, error)

// readTiles assembles the sensor plane from tiles, or from strips treated
// as full-width tiles of RowsPerStrip rows. Tiles on the right and bottom
// edges are padded and clipped to the image.
func (c *container) readTiles(dir ifd, width, height int, decode tileDecoder) ([]uint16, error) {
	tw, th := width, int(dir.uint(tagRowsPerStrip, uint32(height)))
	offsets, counts := dir.uints(tagStripOffsets), dir.uints(tagStripByteCounts)
	if _, tiled := dir[tagTileWidth]; tiled {
		tw, th = int(dir.uint(tagTileWidth, 0)), int(dir.uint(tagTileLength, 0))
		offsets, counts = dir.uints(tagTileOffsets), dir.uints(tagTileByteCounts)
	}
	if tw <= 0 || th <= 0 {
		return nil, fmt.Errorf("invalid tile size %dx%d", tw, th)
	}
	if th > height {
		th = height
	}

	across := (width + tw - 1) / tw
	down := (height + th - 1) / th
	if len(offsets) < across*down || len(counts) < len(offsets) {
		return nil, fmt.Errorf("have %d tiles, need %d", len(offsets), across*down)
	}

	out := make([]uint16, width*height)
	for t := 0; t < across*down; t++ {
		start, n := uint64(offsets[t]), uint64(counts[t])
		if start+n > uint64(len(c.data)) {
			return nil, errors.New("tile extends past end of file")
		}
		tile, err := decode(c.data[start:start+n], tw, th)
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", t, err)
		}

		x0, y0 := (t%across)*tw, (t/across)*th
		rows := min(th, height-y0)
		cols := min(tw, width-x0)
		if len(tile) < (rows-1)*tw+cols {
			return nil, fmt.Errorf("tile %d: %d samples, need %dx%d", t, len(tile), tw, rows)
		}
		for r := 0; r < rows; r++ {
			copy(out[(y0+r)*width+x0:(y0+r)*width+x0+cols], tile[r*tw:r*tw+cols])
		}
	}
	return out, nil
}

// decodeLosslessTile decodes a lossless JPEG tile. The frame may split a
// row into several components or rows; its samples are read back in
// stream order, which is the tile's row-major order.
func decodeLosslessTile(payload []byte, tw, th int) ([]uint16, error) {
	img, err := decodeLosslessJPEG(payload)
	if err != nil {
		return nil, err
	}
	return img.samples, nil
}

// linearize maps raw samples through a DNG LinearizationTable.
func linearize(samples []uint16, table []uint32) {
	last := uint32(len(table) - 1)
	for i, v := range samples {
		samples[i] = uint16(table[min(uint32(v), last)])
	}
}

func isLittle(c *container) bool {
	return c.order.Uint16([]byte{1, 0}) == 1
}

// cfaPattern reads a 2x2 CFAPattern, defaulting to RGGB.
func cfaPattern(dir ifd) [2][2]uint8 {
	pattern := [2][2]uint8{{0, 1}, {1, 2}}

	dims := dir.uints(tagCFARepeatPatternDim)
	colors := dir.uints(tagCFAPattern)
	if len(dims) != 2 || dims[0] != 2 || dims[1] != 2 || len(colors) != 4 {
		return pattern
	}
	for _, c := range colors {
		if c > 2 {
			return pattern
		}
	}
	return [2][2]uint8{
		{uint8(colors[0]), uint8(colors[1])},
		{uint8(colors[2]), uint8(colors[3])},
	}
}

// unpack converts packed sensor bytes to one uint16 per site. 8- and 16-bit
// samples are byte aligned; other depths are an MSB-first bit stream.
func unpack(payload []byte, width, height, bits int, little bool) ([]uint16, error) {
	n := width * height
	need := (n*bits + 7) / 8
	if len(payload) < need {
		return nil, fmt.Errorf("truncated sensor data: have %d bytes, need %d", len(payload), need)
	}

	out := make([]uint16, n)
	switch bits {
	case 8:
		for i := range out {
			out[i] = uint16(payload[i])
		}
	case 16:
		for i := range out {
			lo, hi := payload[2*i], payload[2*i+1]
			if little {
				out[i] = uint16(lo) | uint16(hi)<<8
			} else {
				out[i] = uint16(lo)<<8 | uint16(hi)
			}
		}
	default:
		var acc uint32
		var have int
		pos := 0
		mask := uint32(1)<<bits - 1
		for i := range out {
			for have < bits {
				acc = acc<<8 | uint32(payload[pos])
				pos++
				have += 8
			}
			have -= bits
			out[i] = uint16(acc >> have & mask)
		}
	}
	return out, nil
}
