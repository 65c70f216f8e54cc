package visual

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrIO marks filesystem failures in the visual pipeline
var ErrIO = errors.New("visual i/o failure")

// IOError wraps a filesystem failure with the operation and path
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

// ErrInvalidTestName is returned for names that would escape the report root
var ErrInvalidTestName = errors.New("invalid test name")

const dateLayout = "2006-01-02"

// Store maps test names to files under a report root:
//
//	<root>/baseline/<name>-baseline.png
//	<root>/current/<name>-current-<YYYY-MM-DD>.png
//	<root>/diff/<name>-diff-<YYYY-MM-DD>.png
type Store struct {
	root string
	now  func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock sets the clock used for date stamps
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store rooted at root
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the report root
func (s *Store) Root() string { return s.root }

// ValidateName rejects empty names and names containing path elements
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidTestName, name)
	}
	return nil
}

func (s *Store) stamp() string { return s.now().Format(dateLayout) }

// BaselinePath returns the baseline image path for name
func (s *Store) BaselinePath(name string) string {
	return filepath.Join(s.root, "baseline", name+"-baseline.png")
}

// CurrentPath returns today's capture path for name
func (s *Store) CurrentPath(name string) string {
	return filepath.Join(s.root, "current", fmt.Sprintf("%s-current-%s.png", name, s.stamp()))
}

// DiffPath returns today's diff image path for name
func (s *Store) DiffPath(name string) string {
	return filepath.Join(s.root, "diff", fmt.Sprintf("%s-diff-%s.png", name, s.stamp()))
}

// FlickerPath returns today's comparison animation path for name
func (s *Store) FlickerPath(name string) string {
	return filepath.Join(s.root, "diff", fmt.Sprintf("%s-flicker-%s.gif", name, s.stamp()))
}

// Exists reports whether a baseline is stored for name
func (s *Store) Exists(name string) bool {
	info, err := os.Stat(s.BaselinePath(name))
	return err == nil && info.Mode().IsRegular()
}

// CreateIfAbsent copies src to the baseline for name unless one exists.
// The copy is written to a temporary file and hard-linked into place, so of
// several concurrent callers exactly one gets true, an existing baseline is
// never overwritten and a visible baseline is always complete.
func (s *Store) CreateIfAbsent(name, src string) (bool, error) {
	dst := s.BaselinePath(name)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, &IOError{Op: "create directory", Path: dir, Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return false, &IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return false, &IOError{Op: "create", Path: dir, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return false, &IOError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return false, &IOError{Op: "write", Path: tmp.Name(), Err: err}
	}

	if err := os.Link(tmp.Name(), dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, &IOError{Op: "publish", Path: dst, Err: err}
	}
	return true, nil
}
