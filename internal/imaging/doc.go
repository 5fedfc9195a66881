// Package imaging provides the pixel-level primitives shared by the scan
// pipeline: grayscale conversion, HSV color thresholding into binary masks,
// binary morphology, and margin-aware cropping.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward. Functions never mutate their inputs; every operation
// returns a newly allocated image or mask.
//
// # Masks
//
// A Mask is a binary image aligned with a source page. Masks are produced by
// thresholding in HSV space (see HSVRange) and cleaned up with morphological
// closing and opening before contour extraction. Mask pixels are either fully
// set or fully clear; there are no intermediate values.
//
// # Color Space
//
// Thresholding happens in HSV because the sign detector keys on perceived
// color (a red border, a yellow or white face) rather than raw RGB intensity.
// Hue is expressed in degrees (0-360), saturation and value as fractions
// (0.0-1.0). Ranges that cross the hue wraparound (red) are expressed as two
// ranges combined with MaskAny.
package imaging
