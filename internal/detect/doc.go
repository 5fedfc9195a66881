// Package detect locates candidate traffic-sign regions on a rasterized
// plan page.
//
// Norwegian signs in this dataset have a red border around a yellow or
// white face, so detection keys on color rather than shape:
//
//  1. Threshold the page in HSV space into a red-border mask and a
//     yellow-or-white face mask.
//  2. Morphologically close the masks, subtract face pixels from the red
//     mask and erode once, leaving the border ring.
//  3. Extract external contours (8-connected components) from the border
//     mask and keep the ones whose bounding box passes the area, aspect
//     ratio, face-fraction and rim-fraction checks.
//  4. Drop any surviving box fully contained in another surviving box (the
//     inner one is a marking on the sign face, not a sign).
//  5. Crop each box from the original page with a fixed pixel margin,
//     clipped to the page bounds.
//
// A secondary pass finds "subsigns" - the strong-yellow rectangular
// distance boards mounted under main signs - with a separate mask and a
// wide-rectangle geometry test.
//
// A page with no matches produces an empty region list; that is a normal
// outcome, not an error. All thresholds live in Params; the defaults are
// calibration values for 300 DPI scans, not invariants.
package detect
