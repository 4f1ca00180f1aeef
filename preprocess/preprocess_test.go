package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func uniformImage(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestNormalizeEndpoints(t *testing.T) {
	tests := []struct {
		in   uint8
		want float32
		tol  float64
	}{
		{255, 1.0, 1e-6},
		{0, -1.0, 1e-6},
		{127, 0.0, 0.005},
		{128, 0.0, 0.005},
	}
	for _, tt := range tests {
		got := normalize(tt.in)
		if math.Abs(float64(got-tt.want)) > tt.tol {
			t.Errorf("normalize(%d) = %f; want %f (tol %g)", tt.in, got, tt.want, tt.tol)
		}
	}
}

func TestMidGrayTensorNearZero(t *testing.T) {
	img := uniformImage(InputSize, InputSize, color.NRGBA{127, 127, 127, 255})
	tensor, err := FromBytes(encodePNG(t, img))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if len(tensor.Data) != Channels*InputSize*InputSize {
		t.Fatalf("tensor length = %d; want %d", len(tensor.Data), Channels*InputSize*InputSize)
	}
	for i, v := range tensor.Data {
		if math.Abs(float64(v)) > 0.01 {
			t.Fatalf("tensor[%d] = %f; want ~0 for mid-gray input", i, v)
		}
	}
}

func TestTensorShape(t *testing.T) {
	img := uniformImage(10, 20, color.NRGBA{0, 0, 0, 255})
	tensor, err := FromBytes(encodePNG(t, img))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	want := [4]int64{1, 3, 224, 224}
	if tensor.Shape != want {
		t.Errorf("Shape = %v; want %v", tensor.Shape, want)
	}
}

// TestPlanarLayoutRedQuadrant verifies the first 224x224 block of the tensor
// is the red channel: a pure-red top-left quadrant must show up at the start
// of the red plane and nowhere in the green or blue planes.
func TestPlanarLayoutRedQuadrant(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, InputSize, InputSize))
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			if x < InputSize/2 && y < InputSize/2 {
				img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}
	tensor, err := FromBytes(encodePNG(t, img))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	numPixels := InputSize * InputSize
	// Sample well inside the quadrant to stay clear of resampling at the edge.
	inQuadrant := 10*InputSize + 10
	outQuadrant := (InputSize-10)*InputSize + (InputSize - 10)

	if got := tensor.Data[inQuadrant]; math.Abs(float64(got-1.0)) > 0.02 {
		t.Errorf("red plane inside quadrant = %f; want ~1.0", got)
	}
	if got := tensor.Data[outQuadrant]; math.Abs(float64(got+1.0)) > 0.02 {
		t.Errorf("red plane outside quadrant = %f; want ~-1.0", got)
	}
	// Green and blue planes are black everywhere.
	if got := tensor.Data[numPixels+inQuadrant]; math.Abs(float64(got+1.0)) > 0.02 {
		t.Errorf("green plane inside quadrant = %f; want ~-1.0", got)
	}
	if got := tensor.Data[2*numPixels+inQuadrant]; math.Abs(float64(got+1.0)) > 0.02 {
		t.Errorf("blue plane inside quadrant = %f; want ~-1.0", got)
	}
}

// TestStretchResizeIgnoresAspect checks a non-square input is stretched, not
// cropped: a tall image that is red in its top half fills the top half of the
// output regardless of source aspect ratio.
func TestStretchResizeIgnoresAspect(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 50, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 50; x++ {
			if y < 200 {
				img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{0, 0, 255, 255})
			}
		}
	}
	tensor, err := FromBytes(encodePNG(t, img))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}

	top := 30*InputSize + InputSize/2
	bottom := (InputSize-30)*InputSize + InputSize/2
	if got := tensor.Data[top]; got < 0.9 {
		t.Errorf("red plane near top = %f; want ~1.0 (stretch should fill width)", got)
	}
	if got := tensor.Data[bottom]; got > -0.9 {
		t.Errorf("red plane near bottom = %f; want ~-1.0", got)
	}
}

func TestDecodeError(t *testing.T) {
	_, err := FromBytes([]byte("definitely not an image"))
	if err == nil {
		t.Fatal("FromBytes(garbage) should fail")
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v; want ErrDecode", err)
	}
}
