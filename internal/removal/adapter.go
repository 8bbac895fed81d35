// Package removal defines the boundary to the background-removal
// capability. The pixel-level algorithm is an external black box; this
// package only shapes the call: image bytes in, processed bytes out, with
// a progress callback along the way.
package removal

import "context"

// ProgressFunc receives progress values in [0,1] increasing toward 1.0.
// Adapters may invoke it zero or more times; misbehaving adapters may emit
// out-of-range or regressing values, which callers are expected to clamp.
type ProgressFunc func(p float64)

// Options configures the adapter's output encoding.
type Options struct {
	// Model selects the quality/speed trade-off of the capability.
	Model string

	// OutputFormat is the requested encoding of the processed image
	// ("png" or "jpeg").
	OutputFormat string

	// OutputQuality is the encoder quality in [1,100]; only meaningful
	// for lossy formats.
	OutputQuality int
}

// Adapter performs background removal on one image. Implementations must
// be safe for concurrent use: the orchestrator invokes Remove for many
// items at once and shares a single Adapter across all of them.
//
// All failures are treated identically by the pipeline; no error-kind
// discrimination is required from implementations.
type Adapter interface {
	Remove(ctx context.Context, image []byte, opts Options, onProgress ProgressFunc) ([]byte, error)
}

// Func adapts a plain function to the Adapter interface.
type Func func(ctx context.Context, image []byte, opts Options, onProgress ProgressFunc) ([]byte, error)

// Remove implements Adapter.
func (f Func) Remove(ctx context.Context, image []byte, opts Options, onProgress ProgressFunc) ([]byte, error) {
	return f(ctx, image, opts, onProgress)
}
