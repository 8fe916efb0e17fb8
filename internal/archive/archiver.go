package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shinji-kodama/ink-release/internal/ctxlog"
	"github.com/shinji-kodama/ink-release/internal/model"
)

// Request describes an archive to create.
type Request struct {
	// RootDir contains BaseName; entry names are relative to it.
	RootDir string

	// BaseName is the directory inside RootDir to archive. It is also the
	// archive file name stem and the top-level entry of the archive.
	BaseName string

	// OutputDir receives the archive. It is created if missing.
	OutputDir string

	// Format selects the container and compression.
	Format model.ArchiveFormat

	// DryRun logs the would-be archive path without writing anything.
	DryRun bool
}

// Path returns the archive location for the request.
func (r Request) Path() string {
	return filepath.Join(r.OutputDir, r.BaseName+r.Format.Extension())
}

// Create writes the archive described by req. The data is written to a
// temporary sibling file that is renamed into place on success; on
// failure it is removed and the error wraps model.ErrArchive.
func Create(ctx context.Context, req Request) (*model.ArchiveResult, error) {
	logger := ctxlog.FromContext(ctx)

	// Request may come from a caller that never validated a descriptor.
	if !req.Format.IsValid() {
		return nil, fmt.Errorf("%w: %w: %q", model.ErrArchive, model.ErrInvalidFormat, req.Format)
	}

	path := req.Path()
	logger.Info("Creating archive", "format", req.Format.String(), "path", path)

	// Dry run: nothing is written, not even the output directory.
	if req.DryRun {
		logger.Info("Would create archive", "path", path)
		return &model.ArchiveResult{Path: path, Format: req.Format, DryRun: true}, nil
	}

	// The output directory is created on demand, parents included.
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		logger.Error("Failed to create output directory", "path", req.OutputDir, "error", err)
		return nil, fmt.Errorf("%w: %v", model.ErrArchive, err)
	}

	// An existing archive at path is replaced only once the new one is
	// complete.
	size, err := write(ctx, req, path)
	if err != nil {
		logger.Error("Failed to create archive", "error", err)
		return nil, fmt.Errorf("%w: %v", model.ErrArchive, err)
	}

	logger.Info("Archive created", "path", path, "bytes", size)
	return &model.ArchiveResult{Path: path, Size: size, Format: req.Format}, nil
}

// write archives RootDir/BaseName into path and returns the final size.
func write(ctx context.Context, req Request, path string) (size int64, err error) {
	// Step 1: The package directory must exist and be a directory.
	srcDir := filepath.Join(req.RootDir, req.BaseName)
	info, err := os.Stat(srcDir)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", srcDir)
	}

	// Step 2: Write into a hidden ".partial" file next to the target. It is
	// removed on any error.
	tmp, err := os.CreateTemp(req.OutputDir, "."+req.BaseName+"-*.partial")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	// Step 3: Stream every entry through the format's writer.
	ew, err := newEntryWriter(tmp, req.Format)
	if err != nil {
		return 0, err
	}

	if err = addTree(ctx, ew, req.RootDir, srcDir); err != nil {
		_ = ew.Close()
		return 0, err
	}
	// Step 4: Close the writer before the file: trailers and compressor
	// buffers are flushed on Close.
	if err = ew.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return 0, err
	}
	// CreateTemp uses 0600; the published archive is world-readable.
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return 0, err
	}
	// Step 5: Publish the archive.
	if err = os.Rename(tmpPath, path); err != nil {
		return 0, err
	}

	final, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return final.Size(), nil
}

// addTree walks srcDir and adds every directory and regular file, named
// relative to rootDir. Symbolic links and special files are skipped.
func addTree(ctx context.Context, ew entryWriter, rootDir, srcDir string) error {
	logger := ctxlog.FromContext(ctx)

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		// Stop promptly on Ctrl-C.
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		// Archive entry names always use forward slashes.
		name := filepath.ToSlash(rel)

		// Directories get a trailing slash, the convention both tar and zip
		// readers use to tell them apart from empty files.
		switch {
		case info.IsDir():
			name += "/"
		case info.Mode().IsRegular():
		default:
			logger.Debug("Skipping non-regular file", "path", path)
			return nil
		}

		logger.Debug("Adding archive entry", "name", name)
		return ew.add(name, path, info)
	})
}
