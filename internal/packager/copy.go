package packager

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyTree recursively copies srcDir to dstDir, preserving file modes.
// Symbolic links are skipped. dstDir must not exist yet.
func CopyTree(srcDir, dstDir string) error {
	// Step 1: Check the endpoints. Copying into an existing directory would
	// merge trees, so the destination must be new.
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("failed to stat source directory %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", srcDir)
	}
	if _, err := os.Lstat(dstDir); err == nil {
		return fmt.Errorf("destination %s already exists", dstDir)
	}

	// Step 2: Walk the source in lexical order, recreating directories
	// before their contents.
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("error walking source directory at %s: %w", path, walkErr)
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		dstPath := filepath.Join(dstDir, relPath)

		// Walk uses Lstat, so a link shows up as a link and is never
		// followed out of the header tree.
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		if info.IsDir() {
			// Owner write is kept so the tree can be populated and removed later.
			if err := os.MkdirAll(dstPath, info.Mode().Perm()|0o700); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dstPath, err)
			}
			return nil
		}

		// Sockets, devices and pipes have no place in a header tree.
		if !info.Mode().IsRegular() {
			return nil
		}
		return CopyFile(path, dstPath)
	})
}

// CopyFile copies a single regular file from src to dst, preserving the
// source file mode. dst is truncated if it exists.
func CopyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer func() { _ = srcFile.Close() }()

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("source %s is a directory", src)
	}

	// The destination gets the source permission bits, so executable or
	// read-only files keep their mode in the archive.
	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}

	// Close errors are reported: on some filesystems a failed write only
	// surfaces there.
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	return nil
}
