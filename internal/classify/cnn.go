package classify

import "math"

// tensor is a dense CHW float32 volume.
type tensor struct {
	c, h, w int
	data    []float32
}

func newTensor(c, h, w int) tensor {
	return tensor{c: c, h: h, w: w, data: make([]float32, c*h*w)}
}

func (t tensor) at(c, y, x int) float32 {
	return t.data[(c*t.h+y)*t.w+x]
}

func (t tensor) set(c, y, x int, v float32) {
	t.data[(c*t.h+y)*t.w+x] = v
}

// convRelu applies a 3x3 same-padding convolution followed by a ReLU.
// Out-of-bounds taps read as zero.
func convRelu(in tensor, layer ConvWeights) tensor {
	out := newTensor(layer.Out, in.h, in.w)
	for oc := 0; oc < layer.Out; oc++ {
		bias := layer.B[oc]
		for y := 0; y < in.h; y++ {
			for x := 0; x < in.w; x++ {
				sum := bias
				for ic := 0; ic < layer.In; ic++ {
					wBase := (oc*layer.In + ic) * 9
					for ky := -1; ky <= 1; ky++ {
						py := y + ky
						if py < 0 || py >= in.h {
							continue
						}
						for kx := -1; kx <= 1; kx++ {
							px := x + kx
							if px < 0 || px >= in.w {
								continue
							}
							sum += in.at(ic, py, px) * layer.W[wBase+(ky+1)*3+(kx+1)]
						}
					}
				}
				if sum < 0 {
					sum = 0
				}
				out.set(oc, y, x, sum)
			}
		}
	}
	return out
}

// maxPool2 halves the spatial dimensions with a 2x2 max pool, stride 2.
func maxPool2(in tensor) tensor {
	out := newTensor(in.c, in.h/2, in.w/2)
	for c := 0; c < in.c; c++ {
		for y := 0; y < out.h; y++ {
			for x := 0; x < out.w; x++ {
				m := in.at(c, 2*y, 2*x)
				if v := in.at(c, 2*y, 2*x+1); v > m {
					m = v
				}
				if v := in.at(c, 2*y+1, 2*x); v > m {
					m = v
				}
				if v := in.at(c, 2*y+1, 2*x+1); v > m {
					m = v
				}
				out.set(c, y, x, m)
			}
		}
	}
	return out
}

// dense applies a fully-connected layer. relu selects whether the
// activation is applied; the output layer stays linear for the softmax.
func dense(in []float32, layer DenseWeights, relu bool) []float32 {
	out := make([]float32, layer.Out)
	for o := 0; o < layer.Out; o++ {
		sum := layer.B[o]
		row := layer.W[o*layer.In : (o+1)*layer.In]
		for i, v := range in {
			sum += v * row[i]
		}
		if relu && sum < 0 {
			sum = 0
		}
		out[o] = sum
	}
	return out
}

// softmax converts logits into a probability distribution. The max-logit
// shift keeps the exponentials in range; the result sums to 1 within
// floating-point tolerance.
func softmax(logits []float32) []float64 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(float64(v - maxLogit))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// forward runs the full fixed architecture over a preprocessed input
// tensor and returns the class probability distribution.
func forward(in tensor, weights WeightsFile) []float64 {
	t := in
	for _, conv := range weights.Conv {
		t = maxPool2(convRelu(t, conv))
	}
	// Dropout between the dense layers is an identity at inference.
	hidden := dense(t.data, weights.Dense[0], true)
	logits := dense(hidden, weights.Dense[1], false)
	return softmax(logits)
}
