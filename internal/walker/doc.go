// Package walker enumerates indexable source files under a project root.
//
// Traversal recognizes a fixed set of source extensions, skips a default set
// of build and dependency directories plus every hidden directory other than
// the engine's own .terminal_helper state directory, and never
// escapes the project root: symlinked entries are resolved and bounds-checked
// before they are yielded. Permission errors are logged and the affected
// directory is skipped rather than failing the walk.
package walker
