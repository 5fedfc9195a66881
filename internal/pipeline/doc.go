// Package pipeline orchestrates the page-to-prediction run.
//
// A run walks the document in page order through four stages: render, the
// text-sheet filter, the duplicate filter, then detection and
// classification on the kept pages. The first two filters are sequential
// because the duplicate filter's verdicts depend on which earlier pages
// were kept; detection and classification have no cross-page state and may
// fan out over a worker pool.
//
// Failure policy: a failure confined to one page or one region is logged
// and skipped, so a damaged page never costs the rest of the document.
// Only document-level failures and classifier artifact failures abort the
// run.
package pipeline
