// Package dedup removes near-duplicate map pages from a rasterized plan
// before sign detection runs.
//
// Construction plans repeat the same background map across consecutive
// pages; classifying the same map twice would double-count every sign.
// The filter decides page uniqueness with sparse keypoint matching:
//
//  1. Extract up to NFeatures salient corners per page (FAST-9 with
//     non-maximum suppression) and a 256-bit binary descriptor per corner
//     (BRIEF tests over a smoothed grayscale patch).
//  2. For each descriptor of an incoming page, find its two nearest
//     neighbors by Hamming distance in an already-kept page and accept the
//     correspondence only if the best distance is below Ratio times the
//     second-best (Lowe ratio test, rejecting ambiguous matches).
//  3. A page whose best good-match count against any kept page reaches
//     MinGood is a duplicate of that page and is dropped; otherwise it
//     joins the kept set.
//
// The kept set grows sequentially in page order, so an incoming page is
// compared only against pages already accepted as unique. That keeps the
// comparison cost proportional to the number of distinct maps, which is
// expected to be small, and makes the outcome order-dependent by design.
// Filter is therefore an explicit accumulator: callers feed pages through
// Add in page order and read one Decision per page.
//
// Signatures exist only for the duration of the filtering pass; nothing in
// this package is persisted.
package dedup
