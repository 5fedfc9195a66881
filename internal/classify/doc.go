// Package classify maps a cropped sign region to one of a fixed, closed set
// of sign classes.
//
// The network architecture is fixed: four 3x3 same-padding convolution
// stages with widths 32, 64, 128 and 128, each followed by a ReLU and a 2x2
// max-pool, then two fully-connected layers (256 hidden units, dropout 0.3
// between them - an identity at inference) ending in a softmax over the
// known classes. Inputs are 128x128 RGB crops normalized to [-1, 1].
//
// Weights and the ordered class-label list form the ModelArtifact. The
// artifact is loaded once per run, validated layer by layer against the
// fixed architecture, and shared read-only across all classification calls;
// classification itself is a pure function of (crop, artifact). A label
// list whose length differs from the output-layer width is a load-time
// error, never a silent misclassification.
package classify
