// SPDX-License-Identifier: MIT
// Package fileops copies and moves work-tree files while keeping their mode,
// modification time, and symlink-ness intact.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// TempSuffix is appended to a destination while it is being replaced.
const TempSuffix = ".tmp"

// Exists reports whether path exists without following a final symlink. A
// path whose parent is a regular file does not exist.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return false, nil
	}
	return false, err
}

// Copy copies src to dst, creating parent directories. Regular files keep
// their permission bits and mtime, symlinks are recreated with the same
// target, and directories are copied recursively.
func Copy(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return copySymlink(src, dst)
	case info.IsDir():
		return copyDir(src, dst)
	case info.Mode().IsRegular():
		return copyRegular(src, dst, info)
	default:
		return fmt.Errorf("copy %s: unsupported file type %s", src, info.Mode().Type())
	}
}

func copyRegular(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := removeIfNotDir(dst); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile honours umask, so set the bits explicitly.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := removeIfNotDir(dst); err != nil {
		return err
	}
	return os.Symlink(target, dst)
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return Copy(path, target)
	})
}

func removeIfNotDir(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return os.Remove(path)
}

// Replace atomically replaces dst with a copy of src: the copy is written to
// dst+".tmp" and renamed over dst. A failed attempt leaves dst untouched.
func Replace(src, dst string) error {
	tmp := dst + TempSuffix
	if err := Copy(src, tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("stage %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// Move relocates src to dst, creating parents. When a rename is not possible
// (for example across filesystems) it falls back to copy then remove.
func Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if err := Copy(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	return os.RemoveAll(src)
}
