// Package ocr estimates how much text a rasterized page carries.
//
// Construction-plan PDFs mix map pages with text sheets (front matter,
// sign schedules). The pipeline discards pages whose character count
// exceeds a threshold before map deduplication runs, so that dense text
// sheets never enter the keypoint-matching pass.
//
// Two counter implementations exist behind the CharCounter interface:
//
//   - With the "tesseract" build tag, counting uses Tesseract OCR through
//     gosseract and returns real recognized-character counts. Tesseract
//     and its language data must be installed on the system.
//   - In the default build, a pure-Go heuristic estimates the count from
//     the edge density typical of printed text. The estimate is coarse
//     but needs no native dependencies, and the page filter only
//     compares it to a threshold.
//
// Counting failures are never fatal: the pipeline keeps a page it could
// not analyze rather than risk dropping map content.
package ocr
