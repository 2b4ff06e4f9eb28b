package raw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TIFF tags used by the decoder.
const (
	tagNewSubfileType        = 254
	tagImageWidth            = 256
	tagImageLength           = 257
	tagBitsPerSample         = 258
	tagCompression           = 259
	tagPhotometric           = 262
	tagMake                  = 271
	tagModel                 = 272
	tagStripOffsets          = 273
	tagOrientation           = 274
	tagSamplesPerPixel       = 277
	tagRowsPerStrip          = 278
	tagStripByteCounts       = 279
	tagTileWidth             = 322
	tagTileLength            = 323
	tagTileOffsets           = 324
	tagTileByteCounts        = 325
	tagSubIFDs               = 330
	tagJPEGInterchangeFormat = 513
	tagJPEGInterchangeLength = 514
	tagCFARepeatPatternDim   = 33421
	tagCFAPattern            = 33422
	tagLinearizationTable    = 50712
	tagBlackLevel            = 50714
	tagWhiteLevel            = 50717
	tagAsShotNeutral         = 50728
)

const (
	photometricCFA       = 32803
	photometricLinearRaw = 34892
	compressionNone      = 1
	compressionOldJPEG   = 6
	compressionJPEG      = 7
)

const maxIFDs = 64

var typeSizes = map[uint16]int{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8, 13: 4,
}

var errNotTIFF = errors.New("not a TIFF-based container")

type entry struct {
	typ   uint16
	count uint32
	data  []byte
	order binary.ByteOrder
}

// uints returns integer values of BYTE, SHORT, LONG and IFD entries.
func (e entry) uints() []uint32 {
	out := make([]uint32, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		switch e.typ {
		case 1, 6, 7:
			out = append(out, uint32(e.data[i]))
		case 3, 8:
			out = append(out, uint32(e.order.Uint16(e.data[2*i:])))
		case 4, 9, 13:
			out = append(out, e.order.Uint32(e.data[4*i:]))
		default:
			return out
		}
	}
	return out
}

// floats returns numeric values of any integer or rational entry.
func (e entry) floats() []float64 {
	switch e.typ {
	case 5, 10:
		out := make([]float64, 0, e.count)
		for i := 0; i < int(e.count); i++ {
			num := e.order.Uint32(e.data[8*i:])
			den := e.order.Uint32(e.data[8*i+4:])
			if den == 0 {
				out = append(out, 0)
				continue
			}
			if e.typ == 10 {
				out = append(out, float64(int32(num))/float64(int32(den)))
			} else {
				out = append(out, float64(num)/float64(den))
			}
		}
		return out
	case 11:
		out := make([]float64, 0, e.count)
		for i := 0; i < int(e.count); i++ {
			out = append(out, float64(math.Float32frombits(e.order.Uint32(e.data[4*i:]))))
		}
		return out
	}
	ints := e.uints()
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out
}

func (e entry) str() string {
	b := e.data
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

type ifd map[uint16]entry

func (d ifd) uint(tag uint16, def uint32) uint32 {
	if e, ok := d[tag]; ok {
		if v := e.uints(); len(v) > 0 {
			return v[0]
		}
	}
	return def
}

func (d ifd) uints(tag uint16) []uint32 {
	if e, ok := d[tag]; ok {
		return e.uints()
	}
	return nil
}

func (d ifd) floats(tag uint16) []float64 {
	if e, ok := d[tag]; ok {
		return e.floats()
	}
	return nil
}

// container is a parsed TIFF structure: every reachable IFD in the main
// chain and in SubIFDs, in discovery order.
type container struct {
	data  []byte
	order binary.ByteOrder
	ifds  []ifd
}

func parseContainer(data []byte) (*container, error) {
	if len(data) < 8 {
		return nil, errNotTIFF
	}

	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errNotTIFF
	}

	// 42 is TIFF/DNG/NEF/CR2/ARW; ORF and RW2 use their own magic.
	switch order.Uint16(data[2:4]) {
	case 42, 0x4F52, 0x5352, 0x55:
	default:
		return nil, errNotTIFF
	}

	c := &container{data: data, order: order}
	visited := make(map[uint32]bool)
	queue := []uint32{order.Uint32(data[4:8])}

	for len(queue) > 0 && len(c.ifds) < maxIFDs {
		off := queue[0]
		queue = queue[1:]
		if off == 0 || visited[off] {
			continue
		}
		visited[off] = true

		dir, next, err := c.readIFD(off)
		if err != nil {
			if len(c.ifds) == 0 {
				return nil, err
			}
			continue
		}
		c.ifds = append(c.ifds, dir)

		queue = append(queue, dir.uints(tagSubIFDs)...)
		if next != 0 {
			queue = append(queue, next)
		}
	}

	if len(c.ifds) == 0 {
		return nil, fmt.Errorf("%w: no image directories", errNotTIFF)
	}
	return c, nil
}

func (c *container) readIFD(off uint32) (ifd, uint32, error) {
	data := c.data
	if uint64(off)+2 > uint64(len(data)) {
		return nil, 0, fmt.Errorf("IFD offset %d out of range", off)
	}
	n := int(c.order.Uint16(data[off:]))
	end := uint64(off) + 2 + uint64(n)*12
	if end+4 > uint64(len(data)) {
		return nil, 0, fmt.Errorf("IFD at %d truncated", off)
	}

	dir := make(ifd, n)
	for i := 0; i < n; i++ {
		raw := data[int(off)+2+12*i:]
		tag := c.order.Uint16(raw[0:])
		typ := c.order.Uint16(raw[2:])
		count := c.order.Uint32(raw[4:])

		size, ok := typeSizes[typ]
		if !ok {
			continue
		}
		total := uint64(size) * uint64(count)
		var value []byte
		if total <= 4 {
			value = raw[8 : 8+total]
		} else {
			valOff := uint64(c.order.Uint32(raw[8:]))
			if valOff+total > uint64(len(data)) {
				continue
			}
			value = data[valOff : valOff+total]
		}
		dir[tag] = entry{typ: typ, count: count, data: value, order: c.order}
	}

	return dir, c.order.Uint32(data[end:]), nil
}

// stripData concatenates the strips of an IFD.
func (c *container) stripData(dir ifd) ([]byte, error) {
	offsets := dir.uints(tagStripOffsets)
	counts := dir.uints(tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, errors.New("missing or inconsistent strip tables")
	}

	if len(offsets) == 1 {
		start, n := uint64(offsets[0]), uint64(counts[0])
		if start+n > uint64(len(c.data)) {
			return nil, errors.New("strip extends past end of file")
		}
		return c.data[start : start+n], nil
	}

	var total uint64
	for _, n := range counts {
		total += uint64(n)
	}
	out := make([]byte, 0, total)
	for i, off := range offsets {
		start, n := uint64(off), uint64(counts[i])
		if start+n > uint64(len(c.data)) {
			return nil, errors.New("strip extends past end of file")
		}
		out = append(out, c.data[start:start+n]...)
	}
	return out, nil
}

// describe returns the camera make and model from the first IFD.
func (c *container) describe() (cameraMake, cameraModel string) {
	if len(c.ifds) == 0 {
		return "", ""
	}
	first := c.ifds[0]
	if e, ok := first[tagMake]; ok {
		cameraMake = e.str()
	}
	if e, ok := first[tagModel]; ok {
		cameraModel = e.str()
	}
	return cameraMake, cameraModel
}
