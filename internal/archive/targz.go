// Package archive writes and extracts the .tar.gz files that back each backup entry.
package archive

import (
	"archive/tar"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrCorrupt means the archive could not be decoded or failed verification.
	ErrCorrupt = errors.New("archive is corrupt")
	// ErrMissing means there is no file at the archive path.
	ErrMissing = errors.New("archive is missing")
)

// Result describes a written archive.
type Result struct {
	Size     int64
	Checksum string
}

// TarGz archives directories as gzip-compressed tarballs.
type TarGz struct {
	Level int
}

// New returns a TarGz using the given gzip level; out-of-range levels use the default.
func New(level int) *TarGz {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &TarGz{Level: level}
}

// Archive writes src into dest. The file appears at dest only once it is complete;
// on any failure nothing is left behind. Paths in exclude, the directory holding
// dest and in-progress archives are never written into the stream.
func (a *TarGz) Archive(ctx context.Context, src, dest string, exclude ...string) (Result, error) {
	info, err := os.Stat(src)
	if err != nil {
		return Result{}, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("source %s is not a directory", src)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Result{}, fmt.Errorf("create archive dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), partialPrefix+"*"+filepath.Ext(dest))
	if err != nil {
		return Result{}, fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := newHasher()
	counter := &countingWriter{w: io.MultiWriter(tmp, hasher)}

	gw, err := gzip.NewWriterLevel(counter, a.Level)
	if err != nil {
		return Result{}, err
	}
	tw := tar.NewWriter(gw)

	skip, err := newSkipSet(append(append([]string(nil), exclude...), filepath.Dir(dest)))
	if err != nil {
		return Result{}, err
	}
	w := &walker{tw: tw, root: filepath.Clean(src), skip: skip}
	if err := w.walk(ctx, w.root); err != nil {
		return Result{}, err
	}
	if err := tw.Close(); err != nil {
		return Result{}, fmt.Errorf("close tar stream: %w", err)
	}
	if err := gw.Close(); err != nil {
		return Result{}, fmt.Errorf("close gzip stream: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Result{}, fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return Result{}, fmt.Errorf("commit archive: %w", err)
	}
	committed = true

	return Result{Size: counter.n, Checksum: hex.EncodeToString(hasher.Sum(nil))}, nil
}

const partialPrefix = ".partial-"

// skipSet holds absolute, cleaned paths that walk leaves out.
type skipSet map[string]struct{}

func newSkipSet(paths []string) (skipSet, error) {
	set := make(skipSet, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve excluded path %s: %w", p, err)
		}
		set[abs] = struct{}{}
	}
	return set, nil
}

func (s skipSet) has(full string) bool {
	abs, err := filepath.Abs(full)
	if err != nil {
		return false
	}
	_, ok := s[abs]
	return ok
}

type walker struct {
	tw   *tar.Writer
	root string
	skip skipSet
}

func (w *walker) walk(ctx context.Context, dir string) error {
	tw, root := w.tw, w.root
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		full := filepath.Join(dir, e.Name())
		if strings.HasPrefix(e.Name(), partialPrefix) || w.skip.has(full) {
			continue
		}
		rel, err := filepath.Rel(root, full)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := e.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(full)
			if err != nil {
				return err
			}
			hdr, err := tar.FileInfoHeader(info, link)
			if err != nil {
				return err
			}
			hdr.Name = name
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
		case info.IsDir():
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if err := w.walk(ctx, full); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = name
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if err := copyFile(tw, full); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(w io.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Verify checks that the archive exists and, when checksum is set, that its
// digest matches.
func (a *TarGz) Verify(archivePath, checksum string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMissing, archivePath)
		}
		return err
	}
	defer f.Close()
	if checksum == "" {
		return nil
	}
	hasher := newHasher()
	if _, err := io.Copy(hasher, f); err != nil {
		return err
	}
	if got := hex.EncodeToString(hasher.Sum(nil)); got != checksum {
		return fmt.Errorf("%w: checksum mismatch for %s", ErrCorrupt, archivePath)
	}
	return nil
}

// Extract unpacks archivePath into destDir, creating it when needed.
// Existing files with the same names are overwritten.
func (a *TarGz) Extract(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMissing, archivePath)
		}
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer gr.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create restore dir: %w", err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return fmt.Errorf("open restore dir: %w", err)
	}
	defer root.Close()

	tr := tar.NewReader(gr)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if err := extractEntry(root, tr, hdr); err != nil {
			return err
		}
	}
}

// extractEntry writes one entry through root, so nothing lands outside the
// restore directory even when a path component there has become a symlink.
func extractEntry(root *os.Root, tr *tar.Reader, hdr *tar.Header) error {
	name := cleanName(hdr.Name)
	if name == "" {
		return nil
	}
	rel := filepath.FromSlash(name)

	switch hdr.Typeflag {
	case tar.TypeDir:
		return mkdirAll(root, rel, os.FileMode(hdr.Mode).Perm()|0700)
	case tar.TypeReg:
		if err := mkdirAll(root, filepath.Dir(rel), 0755); err != nil {
			return err
		}
		if err := removeLink(root, rel); err != nil {
			return err
		}
		out, err := root.OpenFile(rel, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			_ = out.Close()
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if err := out.Close(); err != nil {
			return err
		}
		// Parents were just checked to be real directories inside root.
		return os.Chtimes(filepath.Join(root.Name(), rel), hdr.ModTime, hdr.ModTime)
	case tar.TypeSymlink:
		if err := mkdirAll(root, filepath.Dir(rel), 0755); err != nil {
			return err
		}
		if err := root.Remove(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return os.Symlink(hdr.Linkname, filepath.Join(root.Name(), rel))
	default:
		return nil
	}
}

// mkdirAll creates rel inside root one component at a time. A symlink or
// file standing where a directory belongs is replaced by a directory.
func mkdirAll(root *os.Root, rel string, perm os.FileMode) error {
	if rel == "." || rel == "" {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		cur = filepath.Join(cur, part)
		fi, err := root.Lstat(cur)
		switch {
		case err == nil && fi.IsDir():
			continue
		case err == nil:
			if err := root.Remove(cur); err != nil {
				return err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return err
		}
		if err := root.Mkdir(cur, perm); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	return nil
}

// removeLink drops a symlink at rel so the file is written in its place
// rather than through it.
func removeLink(root *os.Root, rel string) error {
	fi, err := root.Lstat(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return root.Remove(rel)
	}
	return nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = strings.TrimLeft(path.Clean(name), "/")
	if name == "" || name == "." || strings.HasPrefix(name, "..") {
		return ""
	}
	return name
}

func newHasher() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only fails for oversized keys.
		panic(err)
	}
	return h
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
