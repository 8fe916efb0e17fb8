package packager

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shinji-kodama/ink-release/internal/model"
)

// MetadataFile is the name of the generated metadata file in the package.
const MetadataFile = "README.txt"

// timestampLayout is the "Built on" format, local time.
const timestampLayout = "2006-01-02 15:04:05"

// Metadata is the content of README.txt.
type Metadata struct {
	// Library is the library name used in the title, e.g. "ink".
	Library string

	// BuildType is the capitalized build type, e.g. "Release".
	BuildType string

	Version string
	OS      string
	Arch    string

	// BuiltAt is rendered as local wall-clock time without a zone.
	BuiltAt time.Time

	// LibraryFile and HeadersName are the two entries listed under
	// "Contents": the static library and the header directory.
	LibraryFile string
	HeadersName string
}

// NewMetadata derives the metadata for desc at time now.
func NewMetadata(desc *model.ReleaseDescriptor, headersName string, now time.Time) Metadata {
	return Metadata{
		Library:     desc.Library,
		BuildType:   desc.BuildTypeLabel(),
		Version:     desc.Version,
		OS:          desc.OS,
		Arch:        desc.Arch,
		BuiltAt:     now,
		LibraryFile: desc.LibraryFile(),
		HeadersName: headersName,
	}
}

// Render returns the plain-text README body:
//
//	# ink Library Release
//
//	Version: 1.2.3
//	OS: linux
//	Architecture: amd64
//	Built on: 2024-03-01 12:30:00
//
//	## Contents
//
//	- libink.a: Static library
//	- include/: Header files
func (m Metadata) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Library %s\n\n", m.Library, m.BuildType)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "OS: %s\n", m.OS)
	fmt.Fprintf(&b, "Architecture: %s\n", m.Arch)
	fmt.Fprintf(&b, "Built on: %s\n\n", m.BuiltAt.Format(timestampLayout))
	b.WriteString("## Contents\n\n")
	fmt.Fprintf(&b, "- %s: Static library\n", m.LibraryFile)
	fmt.Fprintf(&b, "- %s/: Header files\n", m.HeadersName)
	return b.String()
}

// WriteFile writes the rendered metadata to path.
func (m Metadata) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(m.Render()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
