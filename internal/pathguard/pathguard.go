package pathguard

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// AllowedFile is the only content file the service will touch.
const AllowedFile = "site.json"

var (
	ErrPathEscape      = errors.New("path escapes root directory")
	ErrBackupFilename  = errors.New("invalid backup filename")
	ErrUnsupportedFile = errors.New("invalid or unsupported file")
)

// ValidateFileName rejects any logical content name other than AllowedFile.
func ValidateFileName(name string) error {
	if name != AllowedFile {
		return fmt.Errorf("%w: %q", ErrUnsupportedFile, name)
	}
	return nil
}

// ValidateBackupName checks the naming convention for a caller-supplied
// backup name. It never touches the filesystem.
func ValidateBackupName(file, backup string) error {
	if backup == "" || filepath.Base(backup) != backup || strings.ContainsAny(backup, `/\`) {
		return fmt.Errorf("%w: backup must be a filename, not a path", ErrBackupFilename)
	}
	if !strings.HasPrefix(backup, file+".") || !strings.HasSuffix(backup, ".bak") {
		return fmt.Errorf("%w: backup filename does not match target file", ErrBackupFilename)
	}
	return nil
}

// Resolve joins name onto root and returns the absolute, symlink-resolved
// result. The result must be root itself or live beneath it.
func Resolve(root, name string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	realRoot, err := evalExisting(absRoot)
	if err != nil {
		return "", err
	}
	target, err := evalExisting(filepath.Join(absRoot, name))
	if err != nil {
		return "", err
	}
	if !Within(realRoot, target) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrPathEscape, name, root)
	}
	return target, nil
}

// Within reports whether target equals root or is one of its descendants.
// Both paths are expected to be absolute and clean.
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return false
	}
	return true
}

// evalExisting resolves symlinks for the longest existing prefix of p and
// re-attaches the missing tail, so paths that don't exist yet still resolve.
func evalExisting(p string) (string, error) {
	p = filepath.Clean(p)
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p, nil
	}
	head, err := evalExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(head, filepath.Base(p)), nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
