// Package request describes an image load: where it comes from and what has
// to happen to it before delivery.
package request

import (
	"strconv"

	"image-engine/internal/bitmap"
	"image-engine/internal/cachekey"
	"image-engine/internal/sizing"
)

// Request is an immutable description of one image load. Exactly one of
// StableKey, URI or ResourceID identifies the source, in that order of
// precedence.
type Request struct {
	URI        string
	ResourceID int
	StableKey  string

	TargetWidth   int
	TargetHeight  int
	CenterCrop    bool
	CenterInside  bool
	OnlyScaleDown bool

	Rotation       float64
	RotationPivotX float64
	RotationPivotY float64
	HasPivot       bool

	// Transformations holds the stable keys of the transformations applied
	// after decode, in application order.
	Transformations []string

	Config   bitmap.Config
	Priority Priority
}

// HasSize reports whether a target size was requested.
func (r Request) HasSize() bool {
	return r.TargetWidth != 0 || r.TargetHeight != 0
}

// Fit returns the sizing policy implied by the crop flags.
func (r Request) Fit() sizing.FitMode {
	if r.CenterInside {
		return sizing.FitCenterInside
	}
	return sizing.FitCenterCrop
}

// Source returns the canonical source identifier used as the key prefix.
func (r Request) Source() string {
	switch {
	case r.StableKey != "":
		return r.StableKey
	case r.URI != "":
		return r.URI
	case r.ResourceID != 0:
		return "resource:" + strconv.Itoa(r.ResourceID)
	}
	return ""
}

// Key returns the memory cache key for r. Parameters are appended in a fixed
// order so equal requests always produce equal keys.
func (r Request) Key() (string, error) {
	var params []string
	if r.Rotation != 0 {
		p := "rotation:" + formatFloat(r.Rotation)
		if r.HasPivot {
			p += "@" + formatFloat(r.RotationPivotX) + "x" + formatFloat(r.RotationPivotY)
		}
		params = append(params, p)
	}
	if r.HasSize() {
		params = append(params, "resize:"+strconv.Itoa(r.TargetWidth)+"x"+strconv.Itoa(r.TargetHeight))
	}
	if r.CenterCrop {
		params = append(params, "centerCrop")
	} else if r.CenterInside {
		params = append(params, "centerInside")
	}
	if r.OnlyScaleDown {
		params = append(params, "onlyScaleDown")
	}
	if r.Config != bitmap.ARGB8888 {
		params = append(params, "config:"+r.Config.String())
	}
	params = append(params, r.Transformations...)
	return cachekey.Build(r.Source(), params...)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
