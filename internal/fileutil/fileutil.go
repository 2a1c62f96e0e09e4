// Package fileutil holds small file helpers shared by the cache writers.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFileMode streams src to a new file dst with mode. dst must not exist.
// A partially written dst is removed on failure.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// LinkOrCopy hard-links src to dst, falling back to a byte copy when the
// filesystem refuses the link. dst must not exist.
func LinkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	return CopyFileMode(src, dst, 0o644)
}

// TempName reserves an unused name in dir matching pattern and returns it
// without leaving a file behind.
func TempName(dir, pattern string) (string, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	tmp.Close()
	if err := os.Remove(name); err != nil {
		return "", fmt.Errorf("release temp name: %w", err)
	}
	return filepath.Clean(name), nil
}
