package action

import "image-engine/internal/bitmap"

// Target is the closed set of consumers an Action can deliver into. The
// unexported method keeps the set closed to this package; delivery switches
// on the concrete type.
type Target interface {
	isTarget()
}

// Surface is an on-screen view that paints delivered images.
type Surface interface {
	SetImage(img bitmap.Decoded, from bitmap.LoadedFrom)
	// SetError shows fallback, which may be nil, in place of the image.
	SetError(err error, fallback bitmap.Decoded)
}

// RemoteUpdater pushes images into views owned by another process.
type RemoteUpdater interface {
	UpdateImage(viewID int, img bitmap.Decoded)
	UpdateError(viewID int, fallback bitmap.Decoded)
}

// VisualTarget delivers into an on-screen surface.
type VisualTarget struct {
	Surface Surface
}

// RemoteSurfaceTarget delivers into a view identified by ViewID in another
// process.
type RemoteSurfaceTarget struct {
	ViewID int
	Remote RemoteUpdater
}

// CallbackTarget delivers to plain functions. Either may be nil.
type CallbackTarget struct {
	OnSuccess func(img bitmap.Decoded, from bitmap.LoadedFrom)
	OnError   func(err error)
}

func (VisualTarget) isTarget()        {}
func (RemoteSurfaceTarget) isTarget() {}
func (CallbackTarget) isTarget()      {}

func deliverImage(t Target, img bitmap.Decoded, from bitmap.LoadedFrom) {
	switch t := t.(type) {
	case VisualTarget:
		t.Surface.SetImage(img, from)
	case RemoteSurfaceTarget:
		t.Remote.UpdateImage(t.ViewID, img)
	case CallbackTarget:
		if t.OnSuccess != nil {
			t.OnSuccess(img, from)
		}
	}
}

func deliverError(t Target, err error, fallback bitmap.Decoded) {
	switch t := t.(type) {
	case VisualTarget:
		t.Surface.SetError(err, fallback)
	case RemoteSurfaceTarget:
		t.Remote.UpdateError(t.ViewID, fallback)
	case CallbackTarget:
		if t.OnError != nil {
			t.OnError(err)
		}
	}
}
