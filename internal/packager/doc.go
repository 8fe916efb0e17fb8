// Package packager assembles the release directory that gets archived.
//
// An Assembler creates a scratch root with os.MkdirTemp, lays out
// "<lib>-<version>_<os>_<arch>/" inside it with the static library, the
// header tree and a generated README.txt, and hands back a Package. The
// scratch root is the unit of cleanup: Package.Remove deletes it, and a
// failed assembly deletes it before returning.
//
// The package directory is always a direct child of the scratch root.
// Assemble refuses a package name that would resolve anywhere else.
package packager
