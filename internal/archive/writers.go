package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"

	"github.com/shinji-kodama/ink-release/internal/model"
)

// entryWriter adds filesystem entries to an archive.
type entryWriter interface {
	// add writes one entry. name uses forward slashes; directories end in "/".
	add(name string, path string, info os.FileInfo) error
	io.Closer
}

// newEntryWriter returns the writer for format on top of w.
//
//	zip    klauspost zip, deflate
//	tar    archive/tar, uncompressed
//	gztar  tar + klauspost gzip
//	bztar  tar + dsnet bzip2 at best compression
//	xztar  tar + ulikunitz xz
func newEntryWriter(w io.Writer, format model.ArchiveFormat) (entryWriter, error) {
	switch format {
	case model.FormatZip:
		return &zipWriter{zw: zip.NewWriter(w)}, nil
	case model.FormatTar:
		return &tarWriter{tw: tar.NewWriter(w)}, nil
	case model.FormatGzTar:
		return newCompressedTar(gzip.NewWriter(w)), nil
	case model.FormatBzTar:
		bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
		if err != nil {
			return nil, fmt.Errorf("failed to create bzip2 writer: %w", err)
		}
		return newCompressedTar(bw), nil
	case model.FormatXzTar:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return newCompressedTar(xw), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidFormat, format)
	}
}

// tarWriter writes an uncompressed tar stream.
type tarWriter struct {
	tw *tar.Writer
}

// add writes a tar header built from info, followed by the file body for
// regular files.
func (t *tarWriter) add(name, path string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build tar header for %s: %w", path, err)
	}
	// FileInfoHeader only sets the base name; the archive path replaces it.
	hdr.Name = name
	// Entries are owned by root:root (0:0) with no user or group names.
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""

	if err := t.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	if info.IsDir() {
		return nil
	}
	return copyInto(t.tw, path)
}

// Close writes the tar trailer.
func (t *tarWriter) Close() error {
	return t.tw.Close()
}

// compressedTar is a tar stream piped through a compressor.
type compressedTar struct {
	tarWriter

	// compressor sits between the tar writer and the archive file.
	compressor io.WriteCloser
}

func newCompressedTar(c io.WriteCloser) *compressedTar {
	return &compressedTar{tarWriter: tarWriter{tw: tar.NewWriter(c)}, compressor: c}
}

// Close flushes the tar trailer, then the compressor.
func (c *compressedTar) Close() error {
	// Both are closed even when the tar trailer fails.
	tarErr := c.tw.Close()
	compErr := c.compressor.Close()
	if tarErr != nil {
		return tarErr
	}
	return compErr
}

// zipWriter writes a deflate-compressed zip archive.
type zipWriter struct {
	zw *zip.Writer
}

// add writes a zip header built from info. Directories are stored, files
// are deflated.
func (z *zipWriter) add(name, path string, info os.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build zip header for %s: %w", path, err)
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Method = zip.Store
	} else {
		hdr.Method = zip.Deflate
	}

	w, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", name, err)
	}
	if info.IsDir() {
		return nil
	}
	return copyInto(w, path)
}

// Close writes the zip central directory.
func (z *zipWriter) Close() error {
	return z.zw.Close()
}

// copyInto streams the contents of the file at path into w.
func copyInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
	}
	return nil
}
