package ports

import (
	"context"

	"image-engine/internal/action"
	"image-engine/internal/bitmap"
	"image-engine/internal/request"
)

// Loader maps issued actions to cache lookups and decodes
type Loader interface {
	Load(ctx context.Context, a *action.Action) error
	Replay(ctx context.Context) (int, error)
	CancelTag(tag any) int
}

// ImageCache defines the memory cache the loader reads and fills
type ImageCache interface {
	Get(key string) (bitmap.Decoded, bool, error)
	Set(key string, img bitmap.Decoded) error
	Clear()
	InvalidateByKeyPrefix(uri string) (int, error)
}

// DecodeResult is a decoded image and where its bytes came from
type DecodeResult struct {
	Image bitmap.Decoded
	From  bitmap.LoadedFrom
}

// Decoder fetches and decodes the source of a request
type Decoder interface {
	Decode(ctx context.Context, req request.Request, policy request.NetworkPolicy) (DecodeResult, error)
}
