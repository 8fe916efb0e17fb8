package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ArchiveFormat identifies the container/compression format of the release
// archive. The set is fixed; ParseArchiveFormat rejects anything else.
type ArchiveFormat string

const (
	// FormatZip produces a deflate-compressed .zip archive.
	FormatZip ArchiveFormat = "zip"

	// FormatTar produces an uncompressed .tar archive.
	FormatTar ArchiveFormat = "tar"

	// FormatGzTar produces a gzip-compressed tarball (.tar.gz).
	FormatGzTar ArchiveFormat = "gztar"

	// FormatBzTar produces a bzip2-compressed tarball (.tar.bz2).
	FormatBzTar ArchiveFormat = "bztar"

	// FormatXzTar produces an xz-compressed tarball (.tar.xz).
	FormatXzTar ArchiveFormat = "xztar"
)

// DefaultArchiveFormat is used when no format is given on the command line
// or in the config file.
const DefaultArchiveFormat = FormatGzTar

// ArchiveFormats lists every supported format in the order shown in help text.
var ArchiveFormats = []ArchiveFormat{FormatZip, FormatTar, FormatGzTar, FormatBzTar, FormatXzTar}

// String returns the string representation of ArchiveFormat.
func (f ArchiveFormat) String() string {
	return string(f)
}

// IsValid checks whether the ArchiveFormat value is one of the supported formats.
func (f ArchiveFormat) IsValid() bool {
	switch f {
	case FormatZip, FormatTar, FormatGzTar, FormatBzTar, FormatXzTar:
		return true
	default:
		return false
	}
}

// Extension returns the file name suffix, including the leading dot,
// for archives of this format. Unknown formats return "".
func (f ArchiveFormat) Extension() string {
	switch f {
	case FormatZip:
		return ".zip"
	case FormatTar:
		return ".tar"
	case FormatGzTar:
		return ".tar.gz"
	case FormatBzTar:
		return ".tar.bz2"
	case FormatXzTar:
		return ".tar.xz"
	default:
		return ""
	}
}

// ParseArchiveFormat converts a string to an ArchiveFormat.
// Matching is case-insensitive; surrounding whitespace is ignored.
func ParseArchiveFormat(s string) (ArchiveFormat, error) {
	// Normalize first so "GzTar " from a config file is accepted.
	format := ArchiveFormat(strings.ToLower(strings.TrimSpace(s)))
	if !format.IsValid() {
		return "", fmt.Errorf("%w: %q (valid: %s)", ErrInvalidFormat, s, FormatList())
	}
	return format, nil
}

// FormatList returns the supported formats joined with ", ".
func FormatList() string {
	// Used in flag help and error messages: "zip, tar, gztar, bztar, xztar".
	names := make([]string, len(ArchiveFormats))
	for i, f := range ArchiveFormats {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}

// Defaults for the release descriptor. These mirror the flag defaults.
const (
	// DefaultLibrary is the library being packaged; the artifact is libink.a.
	DefaultLibrary = "ink"

	// DefaultBuildType is the lower-case CMake build type.
	DefaultBuildType = "release"

	// DefaultOS and DefaultArch are labels only; no cross-compilation
	// toolchain is selected from them.
	DefaultOS   = "linux"
	DefaultArch = "amd64"

	// Directory defaults are relative to the working directory.
	DefaultOutputDir = "./releases"
	DefaultHeaders   = "./include"
	DefaultSourceDir = "."
)

// DefaultBuildDir returns the default build directory for a build type,
// e.g. "build/release".
func DefaultBuildDir(buildType string) string {
	return "./" + filepath.ToSlash(filepath.Join("build", buildType))
}

// ReleaseDescriptor describes a single packaging run. It is built once by
// the CLI layer and passed read-only through every pipeline stage.
type ReleaseDescriptor struct {
	// Library is the short library name ("ink"). The artifact is lib<Library>.a.
	Library string `json:"library"`

	// BuildType is the lower-case CMake build type label ("release").
	BuildType string `json:"buildType"`

	// Version is the release version, explicit or detected from git tags.
	Version string `json:"version"`

	// OS and Arch name the target platform; they only affect naming and metadata.
	OS   string `json:"os"`
	Arch string `json:"arch"`

	// Format is the archive format of the final artifact.
	Format ArchiveFormat `json:"format"`

	// SourceDir is the CMake source tree (-S).
	SourceDir string `json:"sourceDir"`

	// BuildDir is the CMake build tree (-B) where lib<Library>.a is produced.
	BuildDir string `json:"buildDir"`

	// OutputDir receives the final archive.
	OutputDir string `json:"outputDir"`

	// HeadersDir is copied recursively into the package under its base name.
	HeadersDir string `json:"headersDir"`

	// Clean prunes build artifacts after a successful run.
	Clean bool `json:"clean"`

	// CleanPatterns are extra glob patterns pruned alongside the defaults
	// when Clean is set.
	CleanPatterns []string `json:"cleanPatterns,omitempty"`

	// DryRun logs every intended action without mutating anything.
	DryRun bool `json:"dryRun"`
}

// PackageName returns the release directory name, which is also the
// archive base name: "<lib>-<version>_<os>_<arch>".
func (d *ReleaseDescriptor) PackageName() string {
	// Validate guarantees every part is a single path element.
	return fmt.Sprintf("%s-%s_%s_%s", d.Library, d.Version, d.OS, d.Arch)
}

// LibraryFile returns the static library file name, e.g. "libink.a".
func (d *ReleaseDescriptor) LibraryFile() string {
	return "lib" + d.Library + ".a"
}

// LibraryPath returns the expected location of the static library.
func (d *ReleaseDescriptor) LibraryPath() string {
	return filepath.Join(d.BuildDir, d.LibraryFile())
}

// ArchiveName returns the final archive file name.
func (d *ReleaseDescriptor) ArchiveName() string {
	return d.PackageName() + d.Format.Extension()
}

// BuildTypeLabel returns the capitalized build type ("Release"), as passed
// to CMAKE_BUILD_TYPE and used in the metadata title.
func (d *ReleaseDescriptor) BuildTypeLabel() string {
	return Capitalize(d.BuildType)
}

// Validate checks that every field required by the pipeline is set.
//
// Library, BuildType, Version, OS and Arch become parts of file and
// directory names (the scratch root prefix, the package directory and the
// archive), so each must be a single path element: no separators and no
// "." or ".." that could move a path out of its parent.
func (d *ReleaseDescriptor) Validate() error {
	// An empty version has its own sentinel.
	if d.Version == "" {
		return ErrVersionUnresolved
	}

	// Name parts are checked in the order they appear in the package name.
	parts := []struct{ name, value string }{
		{"library name", d.Library},
		{"build type", d.BuildType},
		{"version", d.Version},
		{"target os", d.OS},
		{"target arch", d.Arch},
	}
	for _, p := range parts {
		if err := checkNamePart(p.value); err != nil {
			return fmt.Errorf("release descriptor: %s %q %w", p.name, p.value, err)
		}
	}

	// The CLI parses the format before building a descriptor; this catches
	// descriptors built in code.
	if !d.Format.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, d.Format)
	}

	// Directory paths are only required to be present; they may be relative.
	dirs := []struct{ name, path string }{
		{"source", d.SourceDir},
		{"build", d.BuildDir},
		{"output", d.OutputDir},
		{"headers", d.HeadersDir},
	}
	for _, dir := range dirs {
		if dir.path == "" {
			return fmt.Errorf("release descriptor: %s directory must not be empty", dir.name)
		}
	}
	return nil
}

// checkNamePart reports why s cannot be used as one element of a file name.
// The returned error reads as a predicate ("must not be empty").
func checkNamePart(s string) error {
	switch {
	case s == "":
		return errors.New("must not be empty")
	case strings.ContainsAny(s, `/\`):
		return errors.New("must not contain path separators")
	// ".." anywhere is refused, which also rules out odd versions such as
	// "1..2".
	case s == "." || strings.Contains(s, ".."):
		return errors.New("must not contain \".\" or \"..\" path elements")
	}
	return nil
}

// Capitalize upper-cases the first letter of s and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	// Byte-based: build types are ASCII ("release", "debug", "relwithdebinfo").
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// ArchiveResult is the outcome of the archive stage. It only feeds the
// human-readable summary.
type ArchiveResult struct {
	// Path is the absolute path of the created archive.
	Path string `json:"path"`

	// Size is the archive size in bytes. Zero in dry-run.
	Size int64 `json:"size"`

	// Format is the archive format used.
	Format ArchiveFormat `json:"format"`

	// DryRun marks a result that describes an archive that was never written.
	DryRun bool `json:"dryRun,omitempty"`
}

// Name returns the archive file name without its directory.
func (r *ArchiveResult) Name() string {
	return filepath.Base(r.Path)
}

// Location returns the directory containing the archive.
func (r *ArchiveResult) Location() string {
	return filepath.Dir(r.Path)
}
