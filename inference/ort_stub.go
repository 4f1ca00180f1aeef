//go:build !cgo
// +build !cgo

// Stub backend for non-CGO builds where ONNX Runtime is not available.

package inference

import "context"

// ORTBackend is unavailable without CGO; Load always fails.
type ORTBackend struct{}

func (ORTBackend) Load(ctx context.Context, modelPath string, opts SessionOptions) (Session, error) {
	return nil, ErrCGORequired
}
