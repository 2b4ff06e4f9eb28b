package raw

import (
	"errors"
	"fmt"
	"image"
	"time"

	"glimpse/internal/filesystem"
	"glimpse/internal/logging"
	"glimpse/internal/metrics"
)

// Method names the stage that produced a decoded image.
type Method string

const (
	// MethodSensor develops the CFA sensor data with the built-in pipeline.
	MethodSensor Method = "sensor"
	// MethodVips delegates to an external decoder, typically libvips.
	MethodVips Method = "vips"
	// MethodEmbedded uses the largest JPEG preview stored in the file.
	MethodEmbedded Method = "embedded"
)

// Fallback decodes a RAW file with an external library.
type Fallback func(path string) (image.Image, error)

// Decoder turns camera RAW files into 8-bit RGB rasters.
//
// Decode tries, in order, the built-in sensor pipeline (uncompressed or
// lossless JPEG CFA data in TIFF/DNG containers), the optional Fallback,
// and finally the largest embedded JPEG preview. A Fallback result smaller
// than the embedded preview is discarded. A Decoder is safe for
// concurrent use.
type Decoder struct {
	fallback Fallback
	retry    filesystem.RetryConfig
}

// NewDecoder creates a decoder. fallback may be nil.
func NewDecoder(fallback Fallback) *Decoder {
	return &Decoder{
		fallback: fallback,
		retry:    filesystem.DefaultRetryConfig(),
	}
}

// Info describes a decoded file.
type Info struct {
	Method Method
	Make   string
	Model  string
}

// Decode reads and decodes the RAW file at path. Every error it returns
// matches ErrRawProcessing, and panics inside decoding stages are turned
// into errors.
func (d *Decoder) Decode(path string) (image.Image, Info, error) {
	data, err := filesystem.ReadFileWithRetry(path, d.retry)
	if err != nil {
		return nil, Info{}, &Error{Path: path, Stage: "read", Err: err}
	}
	return d.DecodeBytes(path, data)
}

// DecodeBytes decodes an in-memory RAW file. path is used for the fallback
// decoder and error messages.
func (d *Decoder) DecodeBytes(path string, data []byte) (img image.Image, info Info, err error) {
	var errs []error

	c, parseErr := parseContainer(data)
	if parseErr != nil {
		errs = append(errs, fmt.Errorf("container: %w", parseErr))
	} else {
		info.Make, info.Model = c.describe()
	}

	if c != nil {
		img, err = d.attempt(path, MethodSensor, func() (image.Image, error) {
			s, err := c.readSensor()
			if err != nil {
				return nil, err
			}
			return orient(develop(s), s.orientation), nil
		})
		if err == nil {
			info.Method = MethodSensor
			return img, info, nil
		}
		errs = append(errs, err)
	}

	// Fallback output smaller than the largest embedded preview is only
	// used when that preview fails to decode.
	var fallbackImg image.Image
	embeddedAt, embeddedArea := findEmbeddedJPEG(data, c)
	if d.fallback != nil {
		img, err = d.attempt(path, MethodVips, func() (image.Image, error) {
			return d.fallback(path)
		})
		if err == nil {
			b := img.Bounds()
			if b.Dx()*b.Dy() >= embeddedArea {
				info.Method = MethodVips
				return img, info, nil
			}
			logging.Debug("RAW fallback for %s gave %dx%d, embedded preview is larger", path, b.Dx(), b.Dy())
			fallbackImg = img
		} else {
			errs = append(errs, err)
		}
	}

	img, err = d.attempt(path, MethodEmbedded, func() (image.Image, error) {
		preview, err := decodeEmbeddedJPEG(data, embeddedAt, c)
		if err != nil {
			return nil, err
		}
		if c != nil {
			preview = orient(preview, int(c.ifds[0].uint(tagOrientation, 1)))
		}
		return preview, nil
	})
	if err == nil {
		info.Method = MethodEmbedded
		return img, info, nil
	}
	if fallbackImg != nil {
		info.Method = MethodVips
		return fallbackImg, info, nil
	}
	errs = append(errs, err)

	return nil, info, &Error{Path: path, Stage: "decode", Err: errors.Join(errs...)}
}

// attempt runs one decode stage with metrics and panic recovery.
func (d *Decoder) attempt(path string, method Method, fn func() (image.Image, error)) (img image.Image, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("panic: %v", r)
		}
		status := "success"
		if err != nil {
			status = "error"
			logging.Debug("RAW %s decode failed for %s: %v", method, path, err)
		}
		metrics.RawDecodeTotal.WithLabelValues(string(method), status).Inc()
		metrics.RawDecodeDuration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	}()

	img, err = fn()
	if err == nil && img == nil {
		err = errors.New("decoder returned no image")
	}
	if err != nil {
		err = fmt.Errorf("%s: %w", method, err)
	}
	return img, err
}
