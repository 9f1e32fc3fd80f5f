// Package bitmap holds the in-memory raster types shared by the cache, the
// decode adapters and the delivery layer.
package bitmap

import "fmt"

// Decoded is an opaque decoded raster. ByteSize must be deterministic for a
// given image: the cache charges it once on insert and refunds the same value
// on removal.
type Decoded interface {
	ByteSize() int
}

// Config is the pixel layout of a decoded raster.
type Config int

const (
	ARGB8888 Config = iota
	Alpha8
	RGB565
	ARGB4444
	RGBAF16
)

// BytesPerPixel returns the storage cost of one pixel in this layout.
func (c Config) BytesPerPixel() int {
	switch c {
	case Alpha8:
		return 1
	case RGB565, ARGB4444:
		return 2
	case RGBAF16:
		return 8
	default:
		return 4
	}
}

func (c Config) String() string {
	switch c {
	case Alpha8:
		return "ALPHA_8"
	case RGB565:
		return "RGB_565"
	case ARGB4444:
		return "ARGB_4444"
	case RGBAF16:
		return "RGBA_F16"
	default:
		return "ARGB_8888"
	}
}

// Bitmap is the concrete raster produced by the decoders in this module.
// Pix may be nil when only the geometry matters.
type Bitmap struct {
	Width  int
	Height int
	Config Config
	Pix    []byte
}

// New returns a Bitmap of the given geometry without allocating pixels.
func New(width, height int, cfg Config) *Bitmap {
	return &Bitmap{Width: width, Height: height, Config: cfg}
}

// ByteSize implements Decoded. A nil Bitmap has no bytes.
func (b *Bitmap) ByteSize() int {
	if b == nil {
		return 0
	}
	return b.Width * b.Height * b.Config.BytesPerPixel()
}

func (b *Bitmap) String() string {
	return fmt.Sprintf("%dx%d %s", b.Width, b.Height, b.Config)
}
