// Package config loads the optional per-project tuning file
// .terminal_helper/rag-config.yaml: fusion weights, BM25 parameters, chunk
// sizing, embedder endpoint and dimension, and extra walker excludes. A
// missing file yields the engine defaults; the engine reads no environment
// variables.
package config
