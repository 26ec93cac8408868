package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Workspace is the scratch directory owned by one conversion.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a uniquely named directory under root, or under the
// system temp dir when root is empty.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "narrate-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// ClipPath names the clip for the sentence at index.
func (w *Workspace) ClipPath(index int) string {
	return w.Path(fmt.Sprintf("segment_%04d.mp3", index))
}

// FillerPath names the silent stand-in for the sentence at index.
func (w *Workspace) FillerPath(index int) string {
	return w.Path(fmt.Sprintf("filler_%04d.mp3", index))
}

// Cleanup removes the workspace. Failures are logged and otherwise ignored.
func (w *Workspace) Cleanup() {
	if err := os.RemoveAll(w.Dir); err != nil {
		log.Debug("workspace cleanup failed", "dir", w.Dir, "error", err)
	}
}

// RemoveFiles deletes files best-effort, ignoring failures.
func RemoveFiles(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Debug("failed to remove temporary file", "path", p, "error", err)
		}
	}
}

// Publish moves src to dst, creating dst's directory. When a rename is not
// possible (for example across filesystems) the file is copied instead.
func Publish(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	tmp := dst + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to copy audio: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to copy audio: %w", err)
	}
	return os.Rename(tmp, dst)
}
