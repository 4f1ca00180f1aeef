package history

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// Stored copies are scaled down and recompressed so a record stays small
// enough for list responses.
const (
	imageRefMaxWidth    = 400
	imageRefJPEGQuality = 70
)

// EncodeImageRef compresses the uploaded image into a JPEG data URL suitable
// for storing alongside the prediction record. Images wider than the cap are
// scaled down with aspect ratio preserved.
func EncodeImageRef(imageBytes []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to decode image for storage: %w", err)
	}

	if img.Bounds().Dx() > imageRefMaxWidth {
		img = resize.Resize(imageRefMaxWidth, 0, img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: imageRefJPEGQuality}); err != nil {
		return "", fmt.Errorf("failed to encode stored image: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
