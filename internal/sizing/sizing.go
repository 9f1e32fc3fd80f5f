// Package sizing picks the downsample factor applied before a
// decode so the decoded raster is no larger than it needs to be.
package sizing

// FitMode resolves an aspect mismatch between requested and actual bounds.
type FitMode int

const (
	// FitCenterCrop fills the requested bounds; the overflowing axis is
	// cropped afterwards. It is the default.
	FitCenterCrop FitMode = iota
	// FitCenterInside keeps both axes within the requested bounds.
	FitCenterInside
)

func (m FitMode) String() string {
	if m == FitCenterInside {
		return "centerInside"
	}
	return "centerCrop"
}

// ComputeSampleFactor returns the integer factor by which an actualW x actualH
// source should be subsampled for a reqW x reqH request. A zero (or
// negative) requested dimension leaves that axis unconstrained. The result is
// always at least 1.
//
// With both axes constrained, center-inside takes the larger of the two floor
// ratios so both dimensions fit, and center-crop takes the smaller so the
// bounds are filled.
func ComputeSampleFactor(reqW, reqH, actualW, actualH int, fit FitMode) int {
	if reqW < 0 {
		reqW = 0
	}
	if reqH < 0 {
		reqH = 0
	}
	if actualW <= 0 || actualH <= 0 || (reqW == 0 && reqH == 0) {
		return 1
	}
	if (reqW == 0 || actualW <= reqW) && (reqH == 0 || actualH <= reqH) {
		return 1
	}

	var factor int
	switch {
	case reqH == 0:
		factor = actualW / reqW
	case reqW == 0:
		factor = actualH / reqH
	default:
		heightRatio := actualH / reqH
		widthRatio := actualW / reqW
		if fit == FitCenterInside {
			factor = max(heightRatio, widthRatio)
		} else {
			factor = min(heightRatio, widthRatio)
		}
	}
	return max(factor, 1)
}
