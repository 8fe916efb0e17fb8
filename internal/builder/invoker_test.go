package builder_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/ink-release/internal/builder"
	"github.com/shinji-kodama/ink-release/internal/builder/buildertest"
	"github.com/shinji-kodama/ink-release/internal/model"
)

func newDescriptor(t *testing.T) *model.ReleaseDescriptor {
	t.Helper()
	root := t.TempDir()
	return &model.ReleaseDescriptor{
		Library:    "ink",
		BuildType:  "release",
		Version:    "1.2.3",
		OS:         "linux",
		Arch:       "amd64",
		Format:     model.FormatGzTar,
		SourceDir:  root,
		BuildDir:   filepath.Join(root, "build", "release"),
		OutputDir:  filepath.Join(root, "releases"),
		HeadersDir: filepath.Join(root, "include"),
	}
}

func TestInvoker_Commands(t *testing.T) {
	desc := newDescriptor(t)
	inv := builder.NewInvoker(&buildertest.FakeRunner{})

	configure := inv.ConfigureCommand(desc)
	assert.Equal(t, "cmake", configure.Name)
	assert.Equal(t, []string{"-B", desc.BuildDir, "-S", desc.SourceDir, "-DCMAKE_BUILD_TYPE=Release"}, configure.Args)

	build := inv.BuildCommand(desc)
	assert.Equal(t, []string{"--build", desc.BuildDir, "--target", "all"}, build.Args)

	custom := builder.NewInvoker(&buildertest.FakeRunner{}, builder.WithCMake("/opt/cmake/bin/cmake"), builder.WithTarget("ink"))
	assert.Equal(t, "/opt/cmake/bin/cmake", custom.BuildCommand(desc).Name)
	assert.Equal(t, "ink", custom.BuildCommand(desc).Args[3])
}

func TestInvoker_Build_ConfiguresFreshDirectory(t *testing.T) {
	desc := newDescriptor(t)
	runner := &buildertest.FakeRunner{}

	require.NoError(t, builder.NewInvoker(runner).Build(context.Background(), desc))

	assert.DirExists(t, desc.BuildDir, "build directory should be created")
	cmds := runner.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, "-B", cmds[0].Args[0], "configuration runs first")
	assert.True(t, buildertest.IsBuildStep(cmds[1]))
}

func TestInvoker_Build_SkipsConfigureWhenCached(t *testing.T) {
	desc := newDescriptor(t)
	require.NoError(t, os.MkdirAll(desc.BuildDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(desc.BuildDir, builder.CacheFile), nil, 0o644))
	runner := &buildertest.FakeRunner{}

	require.NoError(t, builder.NewInvoker(runner).Build(context.Background(), desc))

	cmds := runner.Commands()
	require.Len(t, cmds, 1)
	assert.True(t, buildertest.IsBuildStep(cmds[0]))
}

func TestInvoker_Build_ConfigureFailure(t *testing.T) {
	desc := newDescriptor(t)
	runner := &buildertest.FakeRunner{
		OnRun: func(cmd builder.Command) (*builder.Result, error) {
			return buildertest.Fail(cmd, 1, "CMake Error: The source directory does not exist.")
		},
	}

	err := builder.NewInvoker(runner).Build(context.Background(), desc)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBuildFailed)
	assert.Contains(t, err.Error(), "configuration")
	assert.Equal(t, 1, runner.Calls(), "build step must not run after a failed configuration")
}

func TestInvoker_Build_BuildFailure(t *testing.T) {
	desc := newDescriptor(t)
	runner := &buildertest.FakeRunner{
		OnRun: func(cmd builder.Command) (*builder.Result, error) {
			if buildertest.IsBuildStep(cmd) {
				return buildertest.Fail(cmd, 2, "make: *** [all] Error 2")
			}
			return &builder.Result{}, nil
		},
	}

	err := builder.NewInvoker(runner).Build(context.Background(), desc)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBuildFailed)
	assert.Contains(t, err.Error(), "Error 2")
}

func TestInvoker_Build_DryRun(t *testing.T) {
	desc := newDescriptor(t)
	desc.DryRun = true
	runner := &buildertest.FakeRunner{}

	require.NoError(t, builder.NewInvoker(runner).Build(context.Background(), desc))

	assert.Zero(t, runner.Calls(), "dry-run must not invoke the build tool")
	assert.NoDirExists(t, desc.BuildDir, "dry-run must not create the build directory")
}

func TestInvoker_Build_BuildDirIsFile(t *testing.T) {
	desc := newDescriptor(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(desc.BuildDir), 0o755))
	require.NoError(t, os.WriteFile(desc.BuildDir, []byte("not a dir"), 0o644))

	err := builder.NewInvoker(&buildertest.FakeRunner{}).Build(context.Background(), desc)
	assert.ErrorIs(t, err, model.ErrBuildFailed)
}

func TestVerify(t *testing.T) {
	desc := newDescriptor(t)
	require.NoError(t, os.MkdirAll(desc.BuildDir, 0o755))

	err := builder.Verify(context.Background(), desc)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingArtifact)
	assert.Contains(t, err.Error(), "libink.a")

	require.NoError(t, os.WriteFile(desc.LibraryPath(), []byte("!<arch>\n"), 0o644))
	assert.NoError(t, builder.Verify(context.Background(), desc))
}

func TestVerify_DirectoryIsNotAnArtifact(t *testing.T) {
	desc := newDescriptor(t)
	require.NoError(t, os.MkdirAll(desc.LibraryPath(), 0o755))

	assert.ErrorIs(t, builder.Verify(context.Background(), desc), model.ErrMissingArtifact)
}
