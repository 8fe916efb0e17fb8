// Package vcs resolves the release version from source control.
//
// Git is invoked through os/exec rather than a Go Git library, so tag
// resolution matches exactly what `git describe` prints in the user's
// terminal (lightweight and annotated tags, --abbrev=0 semantics).
package vcs
