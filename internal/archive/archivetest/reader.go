// Package archivetest reads release archives back for assertions in tests.
package archivetest

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/ulikunitz/xz"

	"github.com/shinji-kodama/ink-release/internal/model"
)

// Contents maps entry names to file contents. Directory entries end in "/"
// and map to "".
type Contents map[string]string

// Names returns the sorted entry names.
func (c Contents) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Read decodes the archive at path according to format.
func Read(path string, format model.ArchiveFormat) (Contents, error) {
	// Zip is the only format that is not a tar stream underneath.
	if format == model.FormatZip {
		return readZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader
	switch format {
	case model.FormatTar:
		r = f
	case model.FormatGzTar:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case model.FormatBzTar:
		// Decoded with the standard library, independent of the writer.
		r = bzip2.NewReader(f)
	case model.FormatXzTar:
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, err
		}
		r = xr
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return readTar(r)
}

// readTar collects every entry of a tar stream. Directory entries have no
// body and map to "".
func readTar(r io.Reader) (Contents, error) {
	out := make(Contents)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		out[hdr.Name] = string(data)
	}
}

// readZip collects every entry of the zip file at path. zip needs random
// access to the central directory, so it opens the file itself.
func readZip(path string) (Contents, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	out := make(Contents)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		out[f.Name] = string(data)
	}
	return out, nil
}
