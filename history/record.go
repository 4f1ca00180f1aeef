package history

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartcrop/smartcrop/catalog"
	"github.com/smartcrop/smartcrop/inference"
)

// PredictionRecord is one completed scan as stored and shown to the user.
type PredictionRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Name        string    `json:"name"`
	Disease     string    `json:"disease"`
	Confidence  int       `json:"confidence"`
	Description string    `json:"description"`
	Treatment   string    `json:"treatment"`
	ImageRef    string    `json:"image_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Assemble builds a record from the top prediction. The class metadata
// lookup falls back to the invalid-image entry for unknown labels, so
// assembly never fails. An empty or whitespace name gets a dated default.
func Assemble(top inference.Prediction, name, userID, imageRef string) PredictionRecord {
	now := time.Now()

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Scan " + now.Format("1/2/2006")
	}

	info := catalog.Lookup(top.Label)

	return PredictionRecord{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        name,
		Disease:     info.Name,
		Confidence:  int(math.Round(float64(top.Score) * 100)),
		Description: info.Description,
		Treatment:   info.Treatment,
		ImageRef:    imageRef,
		CreatedAt:   now,
	}
}
