package classify

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrModel marks fatal model-artifact failures: a missing or unreadable
// weights file, a layer whose shape does not match the fixed architecture,
// or a class list that disagrees with the output width. A run cannot
// proceed past any of these.
var ErrModel = errors.New("model artifact error")

// Fixed architecture dimensions.
const (
	// InputSize is the side length of the square RGB input tensor.
	InputSize = 128
	// hiddenUnits is the width of the first fully-connected layer.
	hiddenUnits = 256
)

// convWidths is the channel progression of the four convolution stages.
var convWidths = [5]int{3, 32, 64, 128, 128}

// flatSize is the flattened feature size after four 2x2 pools:
// 128 channels * (128/16) * (128/16).
const flatSize = 128 * (InputSize / 16) * (InputSize / 16)

// ConvWeights holds one 3x3 convolution layer. W is laid out
// [out][in][ky][kx] row-major; B has one bias per output channel.
type ConvWeights struct {
	In  int
	Out int
	W   []float32
	B   []float32
}

// DenseWeights holds one fully-connected layer. W is laid out [out][in]
// row-major; B has one bias per output unit.
type DenseWeights struct {
	In  int
	Out int
	W   []float32
	B   []float32
}

// WeightsFile is the on-disk weights container, encoded with encoding/gob.
// Conv layers appear in forward order, then the two dense layers.
type WeightsFile struct {
	Conv  []ConvWeights
	Dense []DenseWeights
}

// Artifact is the loaded, validated model: weights plus the ordered class
// labels whose index corresponds exactly to the output-layer position.
// An Artifact is immutable and safe for concurrent use.
type Artifact struct {
	weights WeightsFile
	classes []string
}

// Classes returns the ordered class labels. The returned slice must not be
// modified.
func (a *Artifact) Classes() []string { return a.classes }

// NumClasses returns the output-layer width.
func (a *Artifact) NumClasses() int { return len(a.classes) }

// classList mirrors the on-disk class file: {"classes": ["...", ...]}.
type classList struct {
	Classes []string `json:"classes"`
}

// LoadArtifact reads and validates the weights file and the class-label
// file. All failures wrap ErrModel.
func LoadArtifact(weightsPath, classesPath string) (*Artifact, error) {
	classData, err := os.ReadFile(classesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading class list %s: %v", ErrModel, classesPath, err)
	}
	var list classList
	if err := json.Unmarshal(classData, &list); err != nil {
		return nil, fmt.Errorf("%w: parsing class list %s: %v", ErrModel, classesPath, err)
	}

	f, err := os.Open(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening weights %s: %v", ErrModel, weightsPath, err)
	}
	defer f.Close()

	var weights WeightsFile
	if err := gob.NewDecoder(f).Decode(&weights); err != nil {
		return nil, fmt.Errorf("%w: decoding weights %s: %v", ErrModel, weightsPath, err)
	}

	return NewArtifact(weights, list.Classes)
}

// NewArtifact validates in-memory weights against the fixed architecture
// and the class list. Useful for constructing test artifacts without disk.
func NewArtifact(weights WeightsFile, classes []string) (*Artifact, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: class list is empty", ErrModel)
	}
	if err := validateShapes(weights, len(classes)); err != nil {
		return nil, err
	}
	return &Artifact{weights: weights, classes: classes}, nil
}

// validateShapes checks every layer against the fixed architecture so that
// a malformed artifact fails at load time with a precise message.
func validateShapes(w WeightsFile, numClasses int) error {
	if len(w.Conv) != 4 {
		return fmt.Errorf("%w: expected 4 conv layers, got %d", ErrModel, len(w.Conv))
	}
	if len(w.Dense) != 2 {
		return fmt.Errorf("%w: expected 2 dense layers, got %d", ErrModel, len(w.Dense))
	}

	for i, conv := range w.Conv {
		wantIn, wantOut := convWidths[i], convWidths[i+1]
		if conv.In != wantIn || conv.Out != wantOut {
			return fmt.Errorf("%w: conv%d has shape %dx%d, want %dx%d",
				ErrModel, i+1, conv.In, conv.Out, wantIn, wantOut)
		}
		if len(conv.W) != conv.Out*conv.In*9 {
			return fmt.Errorf("%w: conv%d has %d weights, want %d",
				ErrModel, i+1, len(conv.W), conv.Out*conv.In*9)
		}
		if len(conv.B) != conv.Out {
			return fmt.Errorf("%w: conv%d has %d biases, want %d",
				ErrModel, i+1, len(conv.B), conv.Out)
		}
	}

	fc1, fc2 := w.Dense[0], w.Dense[1]
	if fc1.In != flatSize || fc1.Out != hiddenUnits {
		return fmt.Errorf("%w: fc1 has shape %dx%d, want %dx%d",
			ErrModel, fc1.In, fc1.Out, flatSize, hiddenUnits)
	}
	if fc2.In != hiddenUnits {
		return fmt.Errorf("%w: fc2 input width %d, want %d", ErrModel, fc2.In, hiddenUnits)
	}
	if fc2.Out != numClasses {
		return fmt.Errorf("%w: output width %d does not match %d class labels",
			ErrModel, fc2.Out, numClasses)
	}
	if len(fc1.W) != fc1.In*fc1.Out || len(fc1.B) != fc1.Out {
		return fmt.Errorf("%w: fc1 weight/bias sizes inconsistent", ErrModel)
	}
	if len(fc2.W) != fc2.In*fc2.Out || len(fc2.B) != fc2.Out {
		return fmt.Errorf("%w: fc2 weight/bias sizes inconsistent", ErrModel)
	}
	return nil
}

// SaveWeights gob-encodes a weights container to path. Provided for the
// training-export tooling and for test fixtures.
func SaveWeights(path string, weights WeightsFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating weights file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(weights); err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}
	return nil
}
