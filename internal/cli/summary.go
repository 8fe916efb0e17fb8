package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/shinji-kodama/ink-release/internal/model"
)

// summaryJSON is the --json output of a successful run.
type summaryJSON struct {
	Library string `json:"library"`
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`

	// Archive is the file name, Location its directory, Path both joined.
	Archive  string `json:"archive"`
	Format   string `json:"format"`
	Location string `json:"location"`
	Path     string `json:"path"`

	// SizeBytes is exact; Size is the humanized form shown in text mode.
	SizeBytes int64  `json:"sizeBytes"`
	Size      string `json:"size"`

	// DryRun marks a run that wrote no archive. Size fields are then zero.
	DryRun bool `json:"dryRun"`
}

// printSummary writes the release summary. Text mode prints nothing for a
// dry run; JSON mode always prints, flagging dry runs.
func printSummary(w io.Writer, jsonOutput bool, desc *model.ReleaseDescriptor, result *model.ArchiveResult) error {
	if jsonOutput {
		return printSummaryJSON(w, desc, result)
	}
	if result.DryRun {
		return nil
	}
	_, err := io.WriteString(w, FormatSummary(desc, result))
	return err
}

// printSummaryJSON writes summaryJSON as indented JSON.
func printSummaryJSON(w io.Writer, desc *model.ReleaseDescriptor, result *model.ArchiveResult) error {
	data, err := json.MarshalIndent(summaryJSON{
		Library:   desc.Library,
		Version:   desc.Version,
		OS:        desc.OS,
		Arch:      desc.Arch,
		Archive:   result.Name(),
		Format:    result.Format.String(),
		Location:  result.Location(),
		Path:      result.Path,
		SizeBytes: result.Size,
		Size:      humanize.Bytes(uint64(result.Size)),
		DryRun:    result.DryRun,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// FormatSummary renders the human-readable summary block:
//
//	============================================================
//	ink Library Release Summary
//	============================================================
//	Version:      1.2.3
//	...
//	Size:         1.2 MB
//	============================================================
func FormatSummary(desc *model.ReleaseDescriptor, result *model.ArchiveResult) string {
	// Labels are padded to a 14-column field so values line up.
	rule := strings.Repeat("=", 60)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%s Library %s Summary\n", desc.Library, desc.BuildTypeLabel())
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-14s%s\n", "Version:", desc.Version)
	fmt.Fprintf(&b, "%-14s%s\n", "OS:", desc.OS)
	fmt.Fprintf(&b, "%-14s%s\n", "Architecture:", desc.Arch)
	fmt.Fprintf(&b, "%-14s%s\n", "Archive:", result.Name())
	fmt.Fprintf(&b, "%-14s%s\n", "Format:", result.Format)
	fmt.Fprintf(&b, "%-14s%s\n", "Location:", result.Location())
	fmt.Fprintf(&b, "%-14s%s\n", "Size:", humanize.Bytes(uint64(result.Size)))
	fmt.Fprintln(&b, rule)
	return b.String()
}
