package media

import (
	"errors"
	"fmt"
	"image"
	"io"

	"glimpse/internal/filesystem"
	"glimpse/internal/logging"

	// Standard format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode marks a source image that could not be decoded.
	ErrDecode = errors.New("image decode failed")
	// ErrEncode marks a derived JPEG that could not be encoded.
	ErrEncode = errors.New("image encode failed")
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LoadImage decodes a standard-format image with its EXIF orientation
// applied. Decode failures match ErrDecode; open failures are returned as
// the underlying *fs.PathError.
func LoadImage(path string) (image.Image, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return img, nil
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// encodeJPEG fits img into a bound x bound square with Lanczos resampling
// and writes it as JPEG.
func encodeJPEG(w io.Writer, img image.Image, bound, quality int) error {
	b := img.Bounds()
	if b.Dx() > bound || b.Dy() > bound {
		img = imaging.Fit(img, bound, bound, imaging.Lanczos)
	}
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}

// writeJPEG encodes img to path atomically.
func writeJPEG(path string, img image.Image, bound, quality int) error {
	return filesystem.WriteAtomic(path, func(w io.Writer) error {
		return encodeJPEG(w, img, bound, quality)
	})
}
