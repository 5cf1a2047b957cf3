// Package ops archives and restores the local data directory that holds the
// sqlite database and the records server files.
package ops

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Manifest summarises one archive or directory.
type Manifest struct {
	Files  int    `json:"files"`
	Bytes  int64  `json:"bytes"`
	Digest string `json:"digest"`
}

// ArchiveName returns the default archive file name for a backup taken at t.
func ArchiveName(t time.Time) string {
	return "sakinah-" + t.UTC().Format("20060102T150405Z") + ".tar.gz"
}

// Backup writes every regular file under dataDir into a gzip tarball at
// archivePath. Symlinks and sqlite journal files are skipped.
func Backup(dataDir, archivePath string) (Manifest, error) {
	dataDir = filepath.Clean(strings.TrimSpace(dataDir))
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if dataDir == "." || archivePath == "." {
		return Manifest{}, errors.New("data dir and archive path are required")
	}
	info, err := os.Stat(dataDir)
	if err != nil {
		return Manifest{}, err
	}
	if !info.IsDir() {
		return Manifest{}, fmt.Errorf("not a directory: %s", dataDir)
	}
	if within(archivePath, dataDir) {
		return Manifest{}, fmt.Errorf("archive %s must be outside %s", archivePath, dataDir)
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return Manifest{}, err
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return Manifest{}, err
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	var m Manifest
	walkErr := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dataDir || d.IsDir() || d.Type()&os.ModeSymlink != 0 || isJournal(path) {
			return nil
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		n, err := addFile(tw, path, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		m.Files++
		m.Bytes += n
		return nil
	})

	err = errors.Join(walkErr, tw.Close(), gz.Close(), f.Close())
	if err != nil {
		_ = os.Remove(archivePath)
		return Manifest{}, err
	}
	if m.Digest, err = Digest(dataDir); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func addFile(tw *tar.Writer, path, name string) (int64, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return 0, err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}
	return io.Copy(tw, src)
}

// Restore unpacks archivePath into targetDir. Entries that would escape
// targetDir are rejected before anything is written for them.
func Restore(archivePath, targetDir string) (Manifest, error) {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	targetDir = filepath.Clean(strings.TrimSpace(targetDir))
	if archivePath == "." || targetDir == "." {
		return Manifest{}, errors.New("archive path and target dir are required")
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return Manifest{}, err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Manifest{}, err
	}
	defer gz.Close()

	var m Manifest
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return m, err
		}
		rel, err := entryPath(hdr.Name)
		if err != nil {
			return m, err
		}
		out := filepath.Join(targetDir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(out, 0o755); err != nil {
				return m, err
			}
		case tar.TypeReg:
			n, err := writeFile(out, tr, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return m, err
			}
			m.Files++
			m.Bytes += n
		}
	}

	m.Digest, err = Digest(targetDir)
	return m, err
}

func writeFile(path string, r io.Reader, mode os.FileMode) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Digest hashes the relative path and content of every regular file under
// root in lexical order. Journal files are ignored so a live database and
// its restored copy compare equal.
func Digest(root string) (string, error) {
	root = filepath.Clean(root)
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Type()&os.ModeSymlink != 0 || isJournal(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	h := sha256.New()
	for _, rel := range files {
		_, _ = io.WriteString(h, rel+"\n")
		b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return "", err
		}
		_, _ = h.Write(b)
		_, _ = io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Drill backs dataDir up into workDir, restores it next to the archive and
// fails unless both trees hash the same.
func Drill(dataDir, workDir string, now time.Time) (archive, restored string, err error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", "", err
	}
	archive = filepath.Join(workDir, ArchiveName(now))
	restored = strings.TrimSuffix(archive, ".tar.gz") + "-restore"

	src, err := Backup(dataDir, archive)
	if err != nil {
		return "", "", fmt.Errorf("backup: %w", err)
	}
	dst, err := Restore(archive, restored)
	if err != nil {
		return "", "", fmt.Errorf("restore: %w", err)
	}
	if src.Digest != dst.Digest || src.Files != dst.Files {
		return archive, restored, fmt.Errorf("digest mismatch after restore: src=%s restored=%s", src.Digest, dst.Digest)
	}
	return archive, restored, nil
}

func entryPath(name string) (string, error) {
	name = filepath.Clean(filepath.FromSlash(strings.TrimSpace(name)))
	switch {
	case name == "." || name == "":
		return "", errors.New("empty archive entry path")
	case filepath.IsAbs(name):
		return "", fmt.Errorf("absolute archive entry path: %s", name)
	case name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)):
		return "", fmt.Errorf("archive entry escapes target: %s", name)
	}
	return name, nil
}

func isJournal(path string) bool {
	return strings.HasSuffix(path, "-journal") || strings.HasSuffix(path, "-wal") || strings.HasSuffix(path, "-shm")
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
