package inference

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/smartcrop/smartcrop/catalog"
	"github.com/smartcrop/smartcrop/preprocess"
)

// TopK is how many ranked predictions Predict returns.
const TopK = 3

// Prediction is one ranked class with its softmax probability.
type Prediction struct {
	Label catalog.ClassLabel `json:"label"`
	Score float32            `json:"score"`
}

// Engine turns raw image bytes into ranked predictions using the managed
// session.
type Engine struct {
	manager *Manager
}

func NewEngine(manager *Manager) *Engine {
	return &Engine{manager: manager}
}

// Manager exposes the underlying session manager, mainly for preloading.
func (e *Engine) Manager() *Manager {
	return e.manager
}

// Predict decodes and preprocesses the image, runs the forward pass, and
// returns the top-K classes by descending probability. Equal scores keep
// class index order, so the ranking is deterministic for identical logits.
func (e *Engine) Predict(ctx context.Context, imageBytes []byte) ([]Prediction, error) {
	session, err := e.manager.EnsureReady(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	tensor, err := preprocess.FromBytes(imageBytes)
	if err != nil {
		return nil, err
	}

	logits, err := session.Run(ctx, tensor.Data)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}
	if len(logits) == 0 {
		return nil, &InferenceError{Err: errors.New("model returned an empty output tensor")}
	}

	return Rank(logits, TopK), nil
}

// Rank converts logits to probabilities and returns the top k predictions
// in descending score order.
func Rank(logits []float32, k int) []Prediction {
	probs := Softmax(logits)

	preds := make([]Prediction, len(probs))
	for i, p := range probs {
		preds[i] = Prediction{Label: catalog.LabelAt(i), Score: p}
	}

	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Score > preds[j].Score
	})

	if k > len(preds) {
		k = len(preds)
	}
	return preds[:k]
}
