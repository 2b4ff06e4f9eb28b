package raw

import (
	"errors"
	"fmt"
)

// JPEG markers used by lossless (process 14) streams.
const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerDHT  = 0xC4
	markerDRI  = 0xDD
	markerSOF3 = 0xC3
	markerRST0 = 0xD0
	markerRST7 = 0xD7
)

var errTruncatedScan = errors.New("lossless JPEG: entropy data truncated")

// ljpegImage holds the decoded samples of a lossless JPEG frame. Row r
// occupies samples[r*width*components:], components interleaved per column.
type ljpegImage struct {
	width, height int
	components    int
	precision     int
	samples       []uint16
}

type huffTable struct {
	mincode [17]int32
	maxcode [17]int32
	valptr  [17]int32
	vals    []uint8
}

func newHuffTable(counts [16]uint8, vals []uint8) (*huffTable, error) {
	t := &huffTable{vals: vals}
	code, k := int32(0), int32(0)
	for l := 1; l <= 16; l++ {
		n := int32(counts[l-1])
		t.valptr[l] = k
		t.mincode[l] = code
		code += n
		k += n
		t.maxcode[l] = -1
		if n > 0 {
			t.maxcode[l] = code - 1
		}
		if code > 1<<l {
			return nil, errors.New("lossless JPEG: invalid Huffman table")
		}
		code <<= 1
	}
	if int(k) > len(vals) {
		return nil, errors.New("lossless JPEG: Huffman table shorter than its counts")
	}
	return t, nil
}

// bitReader reads the entropy-coded segment, removing stuffed zero bytes.
// It stops at the next marker and feeds zero bits from there on.
type bitReader struct {
	data    []byte
	pos     int
	acc     uint64
	n       uint
	marker  bool
	padding int
}

func (br *bitReader) fill() {
	for br.n <= 56 {
		var b byte
		switch {
		case br.marker || br.pos >= len(br.data):
			br.padding++
		case br.data[br.pos] != 0xFF:
			b = br.data[br.pos]
			br.pos++
		case br.pos+1 < len(br.data) && br.data[br.pos+1] == 0x00:
			b = 0xFF
			br.pos += 2
		default:
			br.marker = true
			br.padding++
		}
		br.acc |= uint64(b) << (56 - br.n)
		br.n += 8
	}
}

func (br *bitReader) bit() int32 {
	if br.n == 0 {
		br.fill()
	}
	v := int32(br.acc >> 63)
	br.acc <<= 1
	br.n--
	return v
}

func (br *bitReader) bits(count int) int32 {
	if count == 0 {
		return 0
	}
	if br.n < uint(count) {
		br.fill()
	}
	v := int32(br.acc >> (64 - uint(count)))
	br.acc <<= uint(count)
	br.n -= uint(count)
	return v
}

// overrun reports whether decoding consumed bits past the end of the data.
func (br *bitReader) overrun() bool {
	return br.padding*8 > int(br.n)
}

// restart skips to the byte after the next RSTn marker and clears the
// bit buffer.
func (br *bitReader) restart() error {
	br.acc, br.n, br.marker, br.padding = 0, 0, false, 0
	for br.pos+1 < len(br.data) {
		if br.data[br.pos] == 0xFF {
			if m := br.data[br.pos+1]; m >= markerRST0 && m <= markerRST7 {
				br.pos += 2
				return nil
			}
		}
		br.pos++
	}
	return errors.New("lossless JPEG: missing restart marker")
}

func (br *bitReader) decode(t *huffTable) (uint8, error) {
	code := br.bit()
	for l := 1; l <= 16; l++ {
		if code <= t.maxcode[l] {
			return t.vals[t.valptr[l]+code-t.mincode[l]], nil
		}
		code = code<<1 | br.bit()
	}
	return 0, errors.New("lossless JPEG: bad Huffman code")
}

// difference reads the magnitude bits for category s and sign-extends them.
func (br *bitReader) difference(s uint8) int32 {
	switch {
	case s == 0:
		return 0
	case s >= 16:
		return 32768
	}
	v := br.bits(int(s))
	if v < 1<<(s-1) {
		v += 1 - 1<<s
	}
	return v
}

type ljpegComponent struct {
	id    uint8
	table int
}

// decodeLosslessJPEG decodes a baseline lossless JPEG (SOF3) stream with
// Huffman coding and 1x1 sampling, as used for DNG and CR2 sensor data.
func decodeLosslessJPEG(data []byte) (*ljpegImage, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, errors.New("lossless JPEG: missing SOI marker")
	}

	var (
		tables     [4]*huffTable
		frame      *ljpegImage
		ids        []uint8
		restartInt int
	)

	pos := 2
	for {
		for pos < len(data) && data[pos] == 0xFF && pos+1 < len(data) && data[pos+1] == 0xFF {
			pos++
		}
		if pos+4 > len(data) || data[pos] != 0xFF {
			return nil, errors.New("lossless JPEG: stream ended before scan")
		}
		marker := data[pos+1]
		if marker == markerEOI {
			return nil, errors.New("lossless JPEG: no scan in stream")
		}
		length := int(data[pos+2])<<8 | int(data[pos+3])
		if length < 2 || pos+2+length > len(data) {
			return nil, fmt.Errorf("lossless JPEG: segment %#x overruns stream", marker)
		}
		seg := data[pos+4 : pos+2+length]
		pos += 2 + length

		switch {
		case marker == markerDHT:
			for len(seg) > 0 {
				if len(seg) < 17 {
					return nil, errors.New("lossless JPEG: short DHT segment")
				}
				class, id := seg[0]>>4, int(seg[0]&0x0F)
				if class != 0 || id > 3 {
					return nil, fmt.Errorf("lossless JPEG: unexpected Huffman table %#x", seg[0])
				}
				var counts [16]uint8
				total := 0
				for i := range counts {
					counts[i] = seg[1+i]
					total += int(seg[1+i])
				}
				if len(seg) < 17+total {
					return nil, errors.New("lossless JPEG: short DHT segment")
				}
				t, err := newHuffTable(counts, seg[17:17+total])
				if err != nil {
					return nil, err
				}
				tables[id] = t
				seg = seg[17+total:]
			}

		case marker == markerSOF3:
			if len(seg) < 6 {
				return nil, errors.New("lossless JPEG: short SOF3 segment")
			}
			frame = &ljpegImage{
				precision:  int(seg[0]),
				height:     int(seg[1])<<8 | int(seg[2]),
				width:      int(seg[3])<<8 | int(seg[4]),
				components: int(seg[5]),
			}
			if frame.precision < 2 || frame.precision > 16 {
				return nil, fmt.Errorf("lossless JPEG: precision %d", frame.precision)
			}
			if frame.width == 0 || frame.height == 0 || frame.components == 0 || frame.components > 4 {
				return nil, fmt.Errorf("lossless JPEG: bad frame %dx%dx%d", frame.width, frame.height, frame.components)
			}
			if len(seg) < 6+3*frame.components {
				return nil, errors.New("lossless JPEG: short SOF3 segment")
			}
			if uint64(frame.width)*uint64(frame.height)*uint64(frame.components) > maxSensorPixels {
				return nil, errors.New("lossless JPEG: frame exceeds size limit")
			}
			ids = ids[:0]
			for i := 0; i < frame.components; i++ {
				c := seg[6+3*i:]
				if c[1] != 0x11 {
					return nil, fmt.Errorf("%w: lossless JPEG sampling %#x", ErrUnsupported, c[1])
				}
				ids = append(ids, c[0])
			}

		case marker >= 0xC0 && marker <= 0xCF && marker != markerDHT && marker != 0xC8 && marker != 0xCC:
			return nil, fmt.Errorf("%w: JPEG process %#x", ErrUnsupported, marker)

		case marker == markerDRI:
			if len(seg) < 2 {
				return nil, errors.New("lossless JPEG: short DRI segment")
			}
			restartInt = int(seg[0])<<8 | int(seg[1])

		case marker == markerSOS:
			if frame == nil {
				return nil, errors.New("lossless JPEG: scan before frame header")
			}
			comps, predictor, pt, err := parseScanHeader(seg, ids, tables)
			if err != nil {
				return nil, err
			}
			if err := frame.decodeScan(data[pos:], comps, tables, predictor, pt, restartInt); err != nil {
				return nil, err
			}
			return frame, nil
		}
	}
}

func parseScanHeader(seg []byte, ids []uint8, tables [4]*huffTable) (comps []ljpegComponent, predictor, pt int, err error) {
	if len(seg) < 1 {
		return nil, 0, 0, errors.New("lossless JPEG: short SOS segment")
	}
	ns := int(seg[0])
	if len(seg) < 1+2*ns+3 {
		return nil, 0, 0, errors.New("lossless JPEG: short SOS segment")
	}
	if ns != len(ids) {
		return nil, 0, 0, fmt.Errorf("%w: scan covers %d of %d components", ErrUnsupported, ns, len(ids))
	}
	for i := 0; i < ns; i++ {
		id, table := seg[1+2*i], int(seg[2+2*i]>>4)
		if id != ids[i] {
			return nil, 0, 0, fmt.Errorf("lossless JPEG: scan component %d out of frame order", id)
		}
		if table > 3 || tables[table] == nil {
			return nil, 0, 0, fmt.Errorf("lossless JPEG: component %d uses undefined table %d", id, table)
		}
		comps = append(comps, ljpegComponent{id: id, table: table})
	}
	rest := seg[1+2*ns:]
	predictor, pt = int(rest[0]), int(rest[2]&0x0F)
	if predictor < 1 || predictor > 7 {
		return nil, 0, 0, fmt.Errorf("lossless JPEG: predictor %d", predictor)
	}
	return comps, predictor, pt, nil
}

func (f *ljpegImage) decodeScan(data []byte, comps []ljpegComponent, tables [4]*huffTable, predictor, pt, restartInt int) error {
	if pt >= f.precision {
		return fmt.Errorf("lossless JPEG: point transform %d", pt)
	}
	nc := f.components
	stride := f.width * nc
	f.samples = make([]uint16, stride*f.height)
	out := f.samples
	initial := int32(1) << (f.precision - pt - 1)

	br := &bitReader{data: data}
	first := true
	mcus := 0
	for y := 0; y < f.height; y++ {
		if restartInt > 0 && y > 0 && mcus%restartInt == 0 {
			if err := br.restart(); err != nil {
				return err
			}
			first = true
		}
		row := y * stride
		for x := 0; x < f.width; x++ {
			for c, comp := range comps {
				i := row + x*nc + c
				var pred int32
				switch {
				case first && x == 0:
					pred = initial
				case first:
					pred = int32(out[i-nc])
				case x == 0:
					pred = int32(out[i-stride])
				default:
					pred = predict(predictor, int32(out[i-nc]), int32(out[i-stride]), int32(out[i-stride-nc]))
				}

				s, err := br.decode(tables[comp.table])
				if err != nil {
					return fmt.Errorf("%w at row %d", err, y)
				}
				out[i] = uint16(pred + br.difference(s))
			}
		}
		mcus += f.width
		first = false
		if br.overrun() {
			return errTruncatedScan
		}
	}

	if pt > 0 {
		for i, v := range out {
			out[i] = v << pt
		}
	}
	return nil
}

// predict computes the lossless predictor from the left (ra), above (rb)
// and upper-left (rc) samples.
func predict(predictor int, ra, rb, rc int32) int32 {
	switch predictor {
	case 1:
		return ra
	case 2:
		return rb
	case 3:
		return rc
	case 4:
		return ra + rb - rc
	case 5:
		return ra + (rb-rc)>>1
	case 6:
		return rb + (ra-rc)>>1
	default:
		return (ra + rb) >> 1
	}
}
