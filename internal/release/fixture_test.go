package release_test

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shinji-kodama/ink-release/internal/builder"
	"github.com/shinji-kodama/ink-release/internal/builder/buildertest"
	"github.com/shinji-kodama/ink-release/internal/ctxlog"
	"github.com/shinji-kodama/ink-release/internal/model"
	"github.com/shinji-kodama/ink-release/internal/packager"
	"github.com/shinji-kodama/ink-release/internal/release"
)

// builtOn is the fixed clock used for README.txt timestamps.
var builtOn = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

// workspace is a throwaway CMake project with a scripted build tool.
//
//	<base>/src/include/ink/ink.hpp
//	<base>/src/include/ink/detail/buffer.hpp
//	<base>/scratch/           parent of every scratch root
type workspace struct {
	base    string
	scratch string
	desc    *model.ReleaseDescriptor
	runner  *buildertest.FakeRunner
	logs    *bytes.Buffer

	// failStep makes the named cmake step ("configuration" or "build") exit 2.
	failStep string

	// skipArtifact makes the build step succeed without producing libink.a.
	skipArtifact bool
}

func newWorkspace(base string) (*workspace, error) {
	src := filepath.Join(base, "src")
	headers := filepath.Join(src, "include")
	files := map[string]string{
		filepath.Join(headers, "ink", "ink.hpp"):              "#pragma once\n",
		filepath.Join(headers, "ink", "detail", "buffer.hpp"): "#pragma once\nnamespace ink {}\n",
		filepath.Join(src, "CMakeLists.txt"):                  "project(ink CXX)\n",
	}
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}

	scratch := filepath.Join(base, "scratch")
	if err := os.Mkdir(scratch, 0o755); err != nil {
		return nil, err
	}

	w := &workspace{
		base:    base,
		scratch: scratch,
		logs:    &bytes.Buffer{},
		desc: &model.ReleaseDescriptor{
			Library:    "ink",
			BuildType:  "release",
			Version:    "1.2.3",
			OS:         "linux",
			Arch:       "amd64",
			Format:     model.FormatGzTar,
			SourceDir:  src,
			BuildDir:   filepath.Join(src, "build", "release"),
			OutputDir:  filepath.Join(src, "releases"),
			HeadersDir: headers,
		},
	}
	w.runner = &buildertest.FakeRunner{OnRun: w.cmake}
	return w, nil
}

// cmake simulates the configure and build steps on the build directory.
func (w *workspace) cmake(cmd builder.Command) (*builder.Result, error) {
	step := "configuration"
	if buildertest.IsBuildStep(cmd) {
		step = "build"
	}
	if step == w.failStep {
		return buildertest.Fail(cmd, 2, "gmake: *** [all] Error 2")
	}

	buildDir := w.desc.BuildDir
	if step == "configuration" {
		if err := os.MkdirAll(filepath.Join(buildDir, "CMakeFiles"), 0o755); err != nil {
			return nil, err
		}
		return &builder.Result{}, os.WriteFile(filepath.Join(buildDir, builder.CacheFile), []byte("CMAKE_BUILD_TYPE:STRING=Release\n"), 0o644)
	}

	outputs := map[string]string{
		filepath.Join("CMakeFiles", "ink.dir", "ink.cpp.o"): "obj",
		"ink.o":     "obj",
		"libink.so": "shared",
	}
	if !w.skipArtifact {
		outputs[w.desc.LibraryFile()] = "!<arch>\n"
	}
	for name, content := range outputs {
		path := filepath.Join(buildDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return &builder.Result{Stdout: "[100%] Built target ink\n"}, nil
}

func (w *workspace) pipeline() *release.Pipeline {
	assembler := packager.NewAssembler(
		packager.WithTempDir(w.scratch),
		packager.WithClock(func() time.Time { return builtOn }),
	)
	return release.NewPipeline(w.runner, release.WithRunID("test-run"), release.WithAssembler(assembler))
}

func (w *workspace) context() context.Context {
	logger := slog.New(slog.NewJSONHandler(w.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func (w *workspace) run() (*model.ArchiveResult, error) {
	return w.pipeline().Run(w.context(), w.desc)
}

// scratchEntries lists whatever is left in the scratch parent.
func (w *workspace) scratchEntries() ([]string, error) {
	entries, err := os.ReadDir(w.scratch)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// snapshot lists every path under the workspace with its size, so two
// snapshots differ whenever anything was created, removed or rewritten.
func (w *workspace) snapshot() ([]string, error) {
	var out []string
	err := filepath.WalkDir(w.base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(w.base, path)
		out = append(out, rel+"|"+info.Mode().String()+"|"+info.ModTime().String()+"|"+sizeOf(info))
		return nil
	})
	sort.Strings(out)
	return out, err
}

func sizeOf(info fs.FileInfo) string {
	if info.IsDir() {
		return "-"
	}
	return strconv.FormatInt(info.Size(), 10)
}
