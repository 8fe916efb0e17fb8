package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shinji-kodama/ink-release/internal/ctxlog"
	"github.com/shinji-kodama/ink-release/internal/model"
)

// Package is an assembled release directory inside its scratch root.
type Package struct {
	// Root is the scratch directory created for this run.
	Root string

	// Dir is the package directory, Root/Name.
	Dir string

	// Name is "<lib>-<version>_<os>_<arch>".
	Name string

	// DryRun marks a package whose paths were computed but never created.
	DryRun bool
}

// Remove deletes the scratch root. It is a no-op for dry-run packages and
// for a nil receiver.
func (p *Package) Remove() error {
	if p == nil || p.DryRun || p.Root == "" {
		return nil
	}
	if err := os.RemoveAll(p.Root); err != nil {
		return fmt.Errorf("failed to remove scratch directory %s: %w", p.Root, err)
	}
	return nil
}

// Assembler builds release packages.
type Assembler struct {
	tempDir string
	now     func() time.Time
}

// AssemblerOption customizes an Assembler.
type AssemblerOption func(*Assembler)

// WithTempDir sets the parent directory for scratch roots.
// Empty means os.TempDir().
func WithTempDir(dir string) AssemblerOption {
	return func(a *Assembler) { a.tempDir = dir }
}

// WithClock overrides the clock used for the "Built on" timestamp.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler creates an Assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble creates the scratch root and populates the package directory
// with the library, the header tree and README.txt.
//
// On any failure the scratch root is removed and the returned error wraps
// model.ErrAssembly. In dry-run mode the would-be paths are logged and
// returned without touching the filesystem.
func (a *Assembler) Assemble(ctx context.Context, desc *model.ReleaseDescriptor) (*Package, error) {
	logger := ctxlog.FromContext(ctx)
	name := desc.PackageName()

	// Scratch roots are named "<lib>-<buildtype>-<random>" so a leftover
	// one in the temp directory is easy to attribute.
	prefix := fmt.Sprintf("%s-%s-", desc.Library, desc.BuildType)

	// The header tree keeps its own base name inside the package, e.g.
	// "include".
	headersName := filepath.Base(filepath.Clean(desc.HeadersDir))

	// Dry run: report the paths a real run would use, with a placeholder
	// for the random part of the scratch root.
	if desc.DryRun {
		root := filepath.Join(a.scratchParent(), prefix+"XXXXXX")
		dir, err := packageDir(root, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrAssembly, err)
		}
		pkg := &Package{Root: root, Dir: dir, Name: name, DryRun: true}
		logger.Info("Would create release directory", "path", pkg.Dir)
		logger.Info("Would copy library file", "from", desc.LibraryPath(), "to", pkg.Dir)
		logger.Info("Would copy headers", "from", desc.HeadersDir, "to", filepath.Join(pkg.Dir, headersName))
		logger.Info("Would create README", "path", filepath.Join(pkg.Dir, MetadataFile))
		return pkg, nil
	}

	// Step 1: Create a fresh scratch root. Every later failure removes it.
	root, err := os.MkdirTemp(a.tempDir, prefix)
	if err != nil {
		logger.Error("Failed to create scratch directory", "error", err)
		return nil, fmt.Errorf("%w: %v", model.ErrAssembly, err)
	}
	pkg := &Package{Root: root, Name: name}

	// The package directory must be a direct child of the scratch root,
	// otherwise Remove would leave the copied files behind.
	pkg.Dir, err = packageDir(root, name)
	if err != nil {
		logger.Error("Refusing to assemble outside the scratch directory", "error", err)
		if rmErr := pkg.Remove(); rmErr != nil {
			logger.Warn("Failed to remove scratch directory", "error", rmErr)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrAssembly, err)
	}
	logger.Info("Creating release directory", "path", pkg.Dir)

	// Step 2: Fill the package directory.
	if err := a.populate(ctx, desc, pkg, headersName); err != nil {
		if rmErr := pkg.Remove(); rmErr != nil {
			logger.Warn("Failed to remove partial package", "error", rmErr)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrAssembly, err)
	}

	return pkg, nil
}

// populate creates pkg.Dir and copies in, in this order, the library, the
// header tree and the generated README.txt.
func (a *Assembler) populate(ctx context.Context, desc *model.ReleaseDescriptor, pkg *Package, headersName string) error {
	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(pkg.Dir, 0o755); err != nil {
		logger.Error("Failed to create release directory", "error", err)
		return err
	}

	libSrc := desc.LibraryPath()
	logger.Info("Copying library file", "from", libSrc, "to", pkg.Dir)
	if err := CopyFile(libSrc, filepath.Join(pkg.Dir, desc.LibraryFile())); err != nil {
		logger.Error("Failed to copy library file", "error", err)
		return err
	}

	headersDst := filepath.Join(pkg.Dir, headersName)
	logger.Info("Copying headers", "from", desc.HeadersDir, "to", headersDst)
	if err := CopyTree(desc.HeadersDir, headersDst); err != nil {
		logger.Error("Failed to copy headers", "error", err)
		return err
	}

	readme := filepath.Join(pkg.Dir, MetadataFile)
	logger.Info("Creating README", "path", readme)
	if err := NewMetadata(desc, headersName, a.now()).WriteFile(readme); err != nil {
		logger.Error("Failed to create README", "error", err)
		return err
	}

	return nil
}

// packageDir joins root and name, failing unless the result is a single
// path element below root.
func packageDir(root, name string) (string, error) {
	dir := filepath.Join(root, name)
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", err
	}
	if rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return "", fmt.Errorf("package name %q does not stay inside %s", name, root)
	}
	return dir, nil
}

// scratchParent returns the directory scratch roots are created in.
func (a *Assembler) scratchParent() string {
	if a.tempDir != "" {
		return a.tempDir
	}
	return os.TempDir()
}
