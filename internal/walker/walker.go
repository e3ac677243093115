package walker

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// codeExtensions is the recognized source extension set. Files outside this
// set are never indexed.
var codeExtensions = map[string]struct{}{
	".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {},
	".py": {}, ".java": {},
	".c": {}, ".cc": {}, ".cpp": {}, ".cxx": {}, ".h": {}, ".hpp": {},
	".go": {}, ".rb": {}, ".php": {}, ".cs": {},
	".scala": {}, ".swift": {}, ".rs": {},
	".kt": {}, ".kts": {},
	".sh": {}, ".bash": {}, ".sql": {},
}

// defaultExcludedDirs are directory names skipped during traversal, in
// addition to any hidden directory and any caller-supplied excludes.
var defaultExcludedDirs = map[string]struct{}{
	"node_modules": {}, ".git": {}, "__pycache__": {}, "venv": {}, ".env": {},
	"build": {}, "dist": {}, "out": {}, "target": {},
	".next": {}, ".nuxt": {}, ".svelte-kit": {},
	"coverage": {}, ".nyc_output": {}, ".pytest_cache": {}, ".tox": {},
	".eggs": {}, "egg-info": {}, ".cache": {}, "tmp": {}, "temp": {},
	".vscode": {}, ".idea": {}, ".Trash": {}, ".npm": {},
}

// dataDirName is the engine's own state directory, the one hidden directory
// the hidden-directory rule does not exclude. Its contents carry no source
// extensions, so traversing it yields nothing.
const dataDirName = ".terminal_helper"

// Walker enumerates indexable source files under a project root.
type Walker struct {
	root     string
	excluded map[string]struct{}
}

// New creates a Walker rooted at root. extraExcludes is unioned with the
// default directory exclude set.
func New(root string, extraExcludes []string) (*Walker, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(defaultExcludedDirs)+len(extraExcludes))
	for name := range defaultExcludedDirs {
		excluded[name] = struct{}{}
	}
	for _, name := range extraExcludes {
		if name != "" {
			excluded[name] = struct{}{}
		}
	}
	return &Walker{root: abs, excluded: excluded}, nil
}

// Root returns the resolved absolute project root.
func (w *Walker) Root() string {
	return w.root
}

// Walk traverses the tree and returns the absolute paths of indexable files
// in traversal order. Per-entry permission errors are logged and skipped;
// symlinks that resolve outside the root are never followed.
func (w *Walker) Walk() ([]string, error) {
	var files []string

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("walk entry skipped", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == w.root {
				return nil
			}
			if w.excludeDir(d.Name()) {
				return filepath.SkipDir
			}
			if !w.contains(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		if !Indexable(path) {
			return nil
		}

		if !w.contains(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// excludeDir reports whether a directory name is skipped: the default set,
// caller excludes, or any hidden directory other than the engine's own.
func (w *Walker) excludeDir(name string) bool {
	if _, ok := w.excluded[name]; ok {
		return true
	}
	if strings.HasPrefix(name, ".") && name != dataDirName {
		return true
	}
	return false
}

// contains reports whether path, after resolving symlinks, stays inside the
// project root.
func (w *Walker) contains(path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(w.root, resolved)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}

// Indexable reports whether the file at path carries a recognized source
// extension.
func Indexable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := codeExtensions[ext]
	return ok
}
