package classify

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"
)

// ErrInference marks recoverable per-region failures: a crop that cannot
// be decoded or resized. The caller skips the region and continues.
var ErrInference = errors.New("inference error")

// Prediction is one class label with its softmax probability.
type Prediction struct {
	Class      string
	Confidence float64
}

// Classifier runs the fixed CNN over sign crops using one shared,
// read-only artifact. It holds no mutable state across calls and is safe
// for concurrent use.
type Classifier struct {
	artifact *Artifact
}

// NewClassifier wraps a loaded artifact.
func NewClassifier(artifact *Artifact) *Classifier {
	return &Classifier{artifact: artifact}
}

// Predict classifies a crop and returns the arg-max class with its softmax
// confidence.
func (c *Classifier) Predict(crop image.Image) (Prediction, error) {
	top, err := c.PredictTopK(crop, 1)
	if err != nil {
		return Prediction{}, err
	}
	return top[0], nil
}

// PredictTopK classifies a crop and returns the k most probable classes in
// descending confidence order. k is clamped to the number of known classes.
func (c *Classifier) PredictTopK(crop image.Image, k int) ([]Prediction, error) {
	in, err := preprocess(crop)
	if err != nil {
		return nil, err
	}
	probs := forward(in, c.artifact.weights)

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })

	if k > len(order) {
		k = len(order)
	}
	out := make([]Prediction, 0, k)
	for _, idx := range order[:k] {
		out = append(out, Prediction{Class: c.artifact.classes[idx], Confidence: probs[idx]})
	}
	return out, nil
}

// preprocess resizes the crop to the fixed input size and normalizes each
// channel from [0, 255] to [-1, 1], matching the range the weights were
// trained against.
func preprocess(crop image.Image) (tensor, error) {
	if crop == nil {
		return tensor{}, fmt.Errorf("%w: nil crop", ErrInference)
	}
	if crop.Bounds().Dx() <= 0 || crop.Bounds().Dy() <= 0 {
		return tensor{}, fmt.Errorf("%w: empty crop %v", ErrInference, crop.Bounds())
	}

	resized := imaging.Resize(crop, InputSize, InputSize, imaging.Lanczos)
	if resized.Bounds().Dx() != InputSize || resized.Bounds().Dy() != InputSize {
		return tensor{}, fmt.Errorf("%w: resize produced %v", ErrInference, resized.Bounds())
	}

	in := newTensor(3, InputSize, InputSize)
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			in.set(0, y, x, normalize(r))
			in.set(1, y, x, normalize(g))
			in.set(2, y, x, normalize(b))
		}
	}
	return in, nil
}

// normalize maps a 16-bit color sample to [-1, 1]: v/255 scaled, then
// (x - 0.5) / 0.5.
func normalize(v uint32) float32 {
	return (float32(v>>8)/255.0 - 0.5) / 0.5
}
