// Package vectorindex implements an append-only exact L2 vector store.
//
// All vectors share one dimension locked at creation. Search is a linear
// scan computing exact squared Euclidean distance, converted to a similarity
// score max(0, 1 - d/100); ties break toward the smaller vector id.
//
// Persistence is split between a little-endian float32 binary payload
// (<name>.bin) and a JSON metadata sidecar (<name>.metadata.json) of the form
// {"dimension": D, "size": n, "metadata": [[id, meta], ...]}. A missing
// payload with intact metadata loads an empty index of the recorded
// dimension; a failed payload write warns and leaves the in-memory state
// intact.
package vectorindex
