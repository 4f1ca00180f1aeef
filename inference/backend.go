package inference

import "context"

// SessionOptions configures how a model session is constructed.
type SessionOptions struct {
	// Input and output tensor names in the model graph.
	InputName  string
	OutputName string

	// Path to the onnxruntime shared library. If empty, the environment
	// variable ONNXRUNTIME_SHARED_LIBRARY_PATH will be respected.
	ORTSharedLibraryPath string

	// NumClasses sizes the output tensor.
	NumClasses int
}

// Backend constructs executable sessions from a model artifact on disk.
type Backend interface {
	Load(ctx context.Context, modelPath string, opts SessionOptions) (Session, error)
}

// Session is a loaded, ready-to-execute instance of the model graph.
// Implementations must be safe for concurrent Run calls; the same handle is
// shared by every prediction once the session is ready.
type Session interface {
	// Run executes the forward pass on a planar NCHW float32 input and
	// returns the raw logit vector.
	Run(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}
