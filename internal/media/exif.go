package media

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"glimpse/internal/filesystem"
	"glimpse/internal/logging"
	"glimpse/internal/mediatypes"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ErrNoExif is returned when a file carries no readable EXIF block.
var ErrNoExif = errors.New("no EXIF data")

// ExifInfo is the shooting information shown in the detail view. Absent
// fields are left empty.
type ExifInfo struct {
	CameraMake           string `json:"cameraMake,omitempty"`
	CameraModel          string `json:"cameraModel,omitempty"`
	LensModel            string `json:"lensModel,omitempty"`
	FocalLength          string `json:"focalLength,omitempty"`
	Aperture             string `json:"aperture,omitempty"`
	ShutterSpeed         string `json:"shutterSpeed,omitempty"`
	ISO                  string `json:"iso,omitempty"`
	ExposureCompensation string `json:"exposureCompensation,omitempty"`
	DateTaken            string `json:"dateTaken,omitempty"`
	Width                int    `json:"width,omitempty"`
	Height               int    `json:"height,omitempty"`
	Orientation          int    `json:"orientation,omitempty"`
}

// ReadExif extracts EXIF fields from a JPEG or TIFF-based RAW file. When
// the EXIF block omits pixel dimensions, a standard image's own header
// supplies them.
func ReadExif(path string) (*ExifInfo, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close %s: %v", path, err)
		}
	}()

	x, err := exif.Decode(file)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("%w in %s: %v", ErrNoExif, path, err)
	}

	info := &ExifInfo{
		CameraMake:  exifString(x, exif.Make),
		CameraModel: exifString(x, exif.Model),
		LensModel:   exifString(x, exif.LensModel),
		Width:       exifInt(x, exif.PixelXDimension),
		Height:      exifInt(x, exif.PixelYDimension),
		Orientation: exifInt(x, exif.Orientation),
	}

	if v, ok := exifRat(x, exif.FocalLength); ok {
		info.FocalLength = formatDecimal(v) + " mm"
	}
	if v, ok := exifRat(x, exif.FNumber); ok {
		info.Aperture = "f/" + formatDecimal(v)
	}
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && num > 0 && den > 0 {
			info.ShutterSpeed = formatExposure(num, den) + "s"
		}
	}
	if iso := exifInt(x, exif.ISOSpeedRatings); iso > 0 {
		info.ISO = "ISO " + strconv.Itoa(iso)
	}
	if v, ok := exifRat(x, exif.ExposureBiasValue); ok {
		info.ExposureCompensation = formatDecimal(v) + " EV"
	}
	if t, err := x.DateTime(); err == nil {
		info.DateTaken = t.Format("2006-01-02 15:04:05")
	}

	if (info.Width == 0 || info.Height == 0) && !mediatypes.IsRaw(path) {
		if dims, err := GetImageDimensions(path); err == nil {
			info.Width, info.Height = dims.Width, dims.Height
		}
	}

	return info, nil
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func exifInt(x *exif.Exif, name exif.FieldName) int {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.IntVal || tag.Count == 0 {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return v
}

func exifRat(x *exif.Exif, name exif.FieldName) (float64, bool) {
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal || tag.Count == 0 {
		return 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// formatExposure renders exposure times below one second as 1/N.
func formatExposure(num, den int64) string {
	if num < den {
		return "1/" + formatDecimal(float64(den)/float64(num))
	}
	return formatDecimal(float64(num) / float64(den))
}

// formatDecimal keeps at most one decimal place: 2.8, 50, -0.3.
func formatDecimal(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
