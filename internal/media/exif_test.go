package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

type exifField struct {
	tag   uint16
	typ   uint16
	ints  []uint32 // SHORT/LONG values, or num/den pairs for (S)RATIONAL
	ascii string
}

// layoutIFD encodes one little-endian IFD starting at offset start,
// followed by its out-of-line values.
func layoutIFD(fields []exifField, start uint32) []byte {
	le := binary.LittleEndian
	var table, extra []byte
	extraOff := start + 2 + 12*uint32(len(fields)) + 4

	table = le.AppendUint16(table, uint16(len(fields)))
	for _, f := range fields {
		var val []byte
		count := uint32(len(f.ints))
		switch f.typ {
		case 2:
			val = append([]byte(f.ascii), 0)
			count = uint32(len(val))
		case 3:
			for _, v := range f.ints {
				val = le.AppendUint16(val, uint16(v))
			}
		case 4:
			for _, v := range f.ints {
				val = le.AppendUint32(val, v)
			}
		case 5, 10:
			for _, v := range f.ints {
				val = le.AppendUint32(val, v)
			}
			count /= 2
		}

		table = le.AppendUint16(table, f.tag)
		table = le.AppendUint16(table, f.typ)
		table = le.AppendUint32(table, count)
		if len(val) <= 4 {
			var inline [4]byte
			copy(inline[:], val)
			table = append(table, inline[:]...)
		} else {
			table = le.AppendUint32(table, extraOff+uint32(len(extra)))
			extra = append(extra, val...)
		}
	}
	table = le.AppendUint32(table, 0)
	return append(table, extra...)
}

func buildExifTIFF(ifd0, exifIFD []exifField) []byte {
	withPointer := func(ptr uint32) []exifField {
		return append(append([]exifField{}, ifd0...), exifField{tag: 0x8769, typ: 4, ints: []uint32{ptr}})
	}
	first := layoutIFD(withPointer(0), 8)
	exifStart := uint32(8 + len(first))
	first = layoutIFD(withPointer(exifStart), 8)

	out := []byte{'I', 'I', 42, 0, 8, 0, 0, 0}
	out = append(out, first...)
	return append(out, layoutIFD(exifIFD, exifStart)...)
}

func TestReadExif(t *testing.T) {
	negThird := uint32(0xFFFFFFFF) // -1 as int32
	data := buildExifTIFF(
		[]exifField{
			{tag: 0x010F, typ: 2, ascii: "NIKON CORPORATION"},
			{tag: 0x0110, typ: 2, ascii: "NIKON Z 6"},
			{tag: 0x0112, typ: 3, ints: []uint32{6}},
		},
		[]exifField{
			{tag: 0x829A, typ: 5, ints: []uint32{1, 200}},
			{tag: 0x829D, typ: 5, ints: []uint32{28, 10}},
			{tag: 0x8827, typ: 3, ints: []uint32{400}},
			{tag: 0x9003, typ: 2, ascii: "2024:05:06 07:08:09"},
			{tag: 0x9204, typ: 10, ints: []uint32{negThird, 3}},
			{tag: 0x920A, typ: 5, ints: []uint32{50, 1}},
			{tag: 0xA002, typ: 4, ints: []uint32{6048}},
			{tag: 0xA003, typ: 4, ints: []uint32{4024}},
			{tag: 0xA434, typ: 2, ascii: "NIKKOR Z 50mm f/1.8 S"},
		},
	)

	path := filepath.Join(t.TempDir(), "DSC_0001.NEF")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := ReadExif(path)
	if err != nil {
		t.Fatalf("ReadExif() error = %v", err)
	}

	want := ExifInfo{
		CameraMake:           "NIKON CORPORATION",
		CameraModel:          "NIKON Z 6",
		LensModel:            "NIKKOR Z 50mm f/1.8 S",
		FocalLength:          "50 mm",
		Aperture:             "f/2.8",
		ShutterSpeed:         "1/200s",
		ISO:                  "ISO 400",
		ExposureCompensation: "-0.3 EV",
		DateTaken:            "2024-05-06 07:08:09",
		Width:                6048,
		Height:               4024,
		Orientation:          6,
	}
	if *info != want {
		t.Errorf("ReadExif() =\n%+v\nwant\n%+v", *info, want)
	}
}

func TestReadExifMissingFields(t *testing.T) {
	data := buildExifTIFF([]exifField{{tag: 0x010F, typ: 2, ascii: "Canon"}}, nil)
	path := filepath.Join(t.TempDir(), "a.cr2")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := ReadExif(path)
	if err != nil {
		t.Fatalf("ReadExif() error = %v", err)
	}
	if info.CameraMake != "Canon" || info.Aperture != "" || info.ISO != "" {
		t.Errorf("ReadExif() = %+v", info)
	}
}

func TestReadExifDimensionsFromImage(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 30)), nil); err != nil {
		t.Fatal(err)
	}
	tiffData := buildExifTIFF([]exifField{{tag: 0x010F, typ: 2, ascii: "Glimpse"}}, nil)

	// APP1 "Exif" segment directly after SOI.
	segment := append([]byte("Exif\x00\x00"), tiffData...)
	data := []byte{0xFF, 0xD8, 0xFF, 0xE1}
	data = binary.BigEndian.AppendUint16(data, uint16(len(segment)+2))
	data = append(data, segment...)
	data = append(data, buf.Bytes()[2:]...)

	path := filepath.Join(t.TempDir(), "scan.jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := ReadExif(path)
	if err != nil {
		t.Fatalf("ReadExif() error = %v", err)
	}
	if info.CameraMake != "Glimpse" || info.Width != 40 || info.Height != 30 {
		t.Errorf("ReadExif() = %+v, want Glimpse 40x30", info)
	}
}

func TestReadExifErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadExif(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("ReadExif(missing) error = nil")
	}

	plain := filepath.Join(dir, "plain.png")
	createTestImage(t, plain, 4, 4, "png")
	if _, err := ReadExif(plain); !errors.Is(err, ErrNoExif) {
		t.Errorf("ReadExif(png without EXIF) error = %v, want ErrNoExif", err)
	}
}

func TestFormatExposure(t *testing.T) {
	tests := []struct {
		num, den int64
		want     string
	}{
		{1, 200, "1/200"},
		{10, 2000, "1/200"},
		{1, 3, "1/3"},
		{2, 1, "2"},
		{5, 2, "2.5"},
	}
	for _, tt := range tests {
		if got := formatExposure(tt.num, tt.den); got != tt.want {
			t.Errorf("formatExposure(%d, %d) = %q, want %q", tt.num, tt.den, got, tt.want)
		}
	}
}
