// Package analysis implements the whole-module analyses consumed by
// the lowering stage: axis info (per-value contiguity and alignment
// facts), static shared-memory allocation, and memory-barrier
// placement. The lowering stage orchestrates them and consumes their
// results; it never recomputes them.
package analysis
