// Package search implements query expansion and hybrid rank fusion.
//
// Expand mines an error log for cues: messages after error/exception/failed
// markers, stack-frame symbols, filenames, call expressions, imports and
// requires. The cues are appended to the original query before both index
// searches run.
//
// Fuse merges the lexical and vector rankings by chunk id into a single
// combined score, a normalized weighted sum with weights 0.3/0.7 by default.
// IdentifyRootCause re-ranks the fused results with query-specific boosts
// (1.5x for a filename mentioned in the error text, 1.2x for chunks carrying
// import lines) and promotes a single chunk; GroupByFile buckets results per
// source file for presentation.
package search
