//go:build cgo
// +build cgo

package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/smartcrop/smartcrop/preprocess"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// ORTBackend constructs sessions backed by the onnxruntime shared library.
type ORTBackend struct{}

func (ORTBackend) Load(ctx context.Context, modelPath string, opts SessionOptions) (Session, error) {
	ortInitOnce.Do(func() {
		if opts.ORTSharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.ORTSharedLibraryPath)
		} else if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", ortInitErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(1, preprocess.Channels, preprocess.InputSize, preprocess.InputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(opts.NumClasses))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session from %s: %w", modelPath, err)
	}

	return &ortSession{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// ortSession binds an AdvancedSession to its pre-allocated input and output
// tensors. The tensors are reused across runs, so Run serializes callers.
type ortSession struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *ortSession) Run(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.input.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d elements; model expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return nil, err
	}

	logits := make([]float32, len(s.output.GetData()))
	copy(logits, s.output.GetData())
	return logits, nil
}

func (s *ortSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.session.Destroy()
	s.input.Destroy()
	s.output.Destroy()
	return err
}
