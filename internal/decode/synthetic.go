// Package decode provides the decoders the engine ships with.
package decode

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"image-engine/internal/bitmap"
	"image-engine/internal/core/ports"
	logutil "image-engine/internal/logging"
	"image-engine/internal/request"
	"image-engine/internal/sizing"

	"github.com/go-logr/logr"
	platformerrors "github.com/jmgilman/go/errors"
)

// Scheme is the URI scheme handled by Synthetic.
const Scheme = "synthetic://"

var _ ports.Decoder = (*Synthetic)(nil)

// Synthetic decodes synthetic://<width>x<height>[/anything] sources into
// blank rasters of that geometry, downsampled the way a real decoder would.
// It reports every image as coming from a fixed provenance, which lets the
// admin server and tests exercise disk and network paths without I/O.
// While disconnected, network decodes fail with a retryable error.
type Synthetic struct {
	from         bitmap.LoadedFrom
	log          logr.Logger
	disconnected atomic.Bool
}

func NewSynthetic(from bitmap.LoadedFrom, log logr.Logger) *Synthetic {
	return &Synthetic{from: from, log: log}
}

// SetConnected switches the simulated network on or off.
func (d *Synthetic) SetConnected(connected bool) {
	d.disconnected.Store(!connected)
}

func (d *Synthetic) Connected() bool {
	return !d.disconnected.Load()
}

// Decode implements ports.Decoder.
func (d *Synthetic) Decode(ctx context.Context, req request.Request, policy request.NetworkPolicy) (ports.DecodeResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DecodeResult{}, err
	}

	width, height, err := ParseDimensions(req.URI)
	if err != nil {
		return ports.DecodeResult{}, err
	}

	from := d.from
	if from == bitmap.Disk && !policy.ShouldReadFromDiskCache() {
		from = bitmap.Network
	}
	if from == bitmap.Network && policy.IsOffline() {
		return ports.DecodeResult{}, platformerrors.Newf(platformerrors.CodeNetwork,
			"%s requires the network but the request is offline", req.URI)
	}
	if from == bitmap.Network && d.disconnected.Load() {
		return ports.DecodeResult{}, platformerrors.Newf(platformerrors.CodeNetwork,
			"network unreachable fetching %s", req.URI)
	}

	sample := sizing.ComputeSampleFactor(req.TargetWidth, req.TargetHeight, width, height, req.Fit())
	img := bitmap.New(width/sample, height/sample, req.Config)
	d.log.V(logutil.TRACE).Info("Decoded synthetic image",
		"uri", req.URI, "source", strconv.Itoa(width)+"x"+strconv.Itoa(height),
		"sample", sample, "image", img.String(), "from", from)
	return ports.DecodeResult{Image: img, From: from}, nil
}

// ParseDimensions extracts the source geometry from a synthetic URI.
func ParseDimensions(uri string) (int, int, error) {
	rest, ok := strings.CutPrefix(uri, Scheme)
	if !ok {
		return 0, 0, platformerrors.Newf(platformerrors.CodeInvalidInput, "unsupported source %q", uri)
	}
	geometry, _, _ := strings.Cut(rest, "/")
	ws, hs, ok := strings.Cut(geometry, "x")
	if !ok {
		return 0, 0, platformerrors.Newf(platformerrors.CodeInvalidInput, "malformed geometry in %q", uri)
	}
	width, werr := strconv.Atoi(ws)
	height, herr := strconv.Atoi(hs)
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return 0, 0, platformerrors.Newf(platformerrors.CodeInvalidInput, "malformed geometry in %q", uri)
	}
	return width, height, nil
}
