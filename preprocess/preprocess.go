// Package preprocess converts arbitrary input images into the fixed-shape
// float32 tensor the crop disease model expects.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	resize "github.com/nfnt/resize"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// InputSize is the model's square input resolution.
const InputSize = 224

// Channels is the number of color channels in the input tensor.
const Channels = 3

// ErrDecode is returned when the input bytes cannot be decoded as an image.
var ErrDecode = errors.New("input is not a decodable image")

// Tensor is the planar NCHW float32 input buffer for one forward pass.
// Layout: Data[c*224*224 + y*224 + x], all red values first, then green,
// then blue. Each value is normalized to (v/255 - 0.5) / 0.5.
type Tensor struct {
	Data  []float32
	Shape [4]int64
}

// normalize maps an 8-bit channel value into [-1, 1].
func normalize(v uint8) float32 {
	return (float32(v)/255.0 - 0.5) / 0.5
}

// FromImage converts a decoded image into the model input tensor.
// The image is stretched (not cropped) to 224x224; aspect ratio is
// deliberately not preserved, matching the model's training preprocessing.
// The alpha channel, if present, is ignored.
func FromImage(img image.Image) *Tensor {
	scaled := resize.Resize(InputSize, InputSize, img, resize.Bilinear)

	// Blit into an NRGBA buffer so channel reads are straight (not
	// alpha-premultiplied) byte offsets.
	rgba := image.NewNRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.Draw(rgba, rgba.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

	numPixels := InputSize * InputSize
	data := make([]float32, Channels*numPixels)
	rOff := 0
	gOff := numPixels
	bOff := 2 * numPixels

	idx := 0
	for y := 0; y < InputSize; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < InputSize; x++ {
			p := x * 4
			data[rOff+idx] = normalize(row[p+0])
			data[gOff+idx] = normalize(row[p+1])
			data[bOff+idx] = normalize(row[p+2])
			idx++
		}
	}

	return &Tensor{
		Data:  data,
		Shape: [4]int64{1, Channels, InputSize, InputSize},
	}
}

// FromReader decodes an image from r and converts it into the input tensor.
func FromReader(r io.Reader) (*Tensor, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromImage(img), nil
}

// FromBytes decodes an image from raw bytes and converts it into the input tensor.
func FromBytes(b []byte) (*Tensor, error) {
	return FromReader(bytes.NewReader(b))
}

// FromFile decodes an image file and converts it into the input tensor.
func FromFile(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return FromReader(f)
}
