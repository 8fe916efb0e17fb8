package docker

import (
	"github.com/docker/docker/api/types/filters"
)

// Label keys attached to every build container. They let a run find and
// remove containers it left behind (e.g. after Ctrl-C).
const (
	// LabelPrefix namespaces all ink-release labels.
	LabelPrefix = "ink-release."

	// LabelManagedBy identifies containers created by this tool.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelRunID ties a container to one pipeline run.
	LabelRunID = LabelPrefix + "run-id"

	// LabelCommand records the command line the container executes.
	LabelCommand = LabelPrefix + "command"
)

// ManagedByValue is the value of LabelManagedBy.
const ManagedByValue = "ink-release"

// maxLabelValue caps label values; long CMake command lines are truncated.
const maxLabelValue = 256

// BuildLabels returns the labels for a container running command as part
// of run runID.
func BuildLabels(runID, command string) map[string]string {
	// Truncation is byte-based; command lines are ASCII in practice.
	if len(command) > maxLabelValue {
		command = command[:maxLabelValue]
	}
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelCommand:   command,
	}
	// Without a run ID the container cannot be matched by RunFilter and is
	// only removed by the per-command cleanup in ContainerRunner.Run.
	if runID != "" {
		labels[LabelRunID] = runID
	}
	return labels
}

// RunFilter returns the container list filter matching every container of
// run runID.
func RunFilter(runID string) filters.Args {
	// Both labels must match.
	return filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
		filters.Arg("label", LabelRunID+"="+runID),
	)
}
