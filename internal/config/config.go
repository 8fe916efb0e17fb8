package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/ink-release/internal/builder"
	"github.com/shinji-kodama/ink-release/internal/model"
)

// BaseName is the file name, without extension, searched by Discover.
const BaseName = ".ink-release"

// Extensions lists the recognized config file extensions in discovery order.
var Extensions = []string{".yaml", ".yml", ".toml", ".json", ".jsonc"}

// ErrUnsupportedFormat is returned for a config file with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// File is the decoded release config file. Every field is optional; zero
// values mean "not set" and leave the flag default in effect.
type File struct {
	// Library and BuildType have no flags; they can only be set here.
	Library   string `yaml:"library" json:"library" toml:"library"`
	BuildType string `yaml:"build_type" json:"build_type" toml:"build_type"`

	// Directory settings. Relative values are resolved against the
	// directory holding the config file.
	Source  string `yaml:"source" json:"source" toml:"source"`
	Build   string `yaml:"build" json:"build" toml:"build"`
	Output  string `yaml:"output" json:"output" toml:"output"`
	Headers string `yaml:"headers" json:"headers" toml:"headers"`

	// Target labels and archive format, same values as --os, --arch and
	// --format.
	OS     string `yaml:"os" json:"os" toml:"os"`
	Arch   string `yaml:"arch" json:"arch" toml:"arch"`
	Format string `yaml:"format" json:"format" toml:"format"`

	// DockerImage runs the cmake steps in a container, like --docker-image.
	DockerImage string `yaml:"docker_image" json:"docker_image" toml:"docker_image"`

	// CleanPatterns are extra globs removed from the build directory by
	// --clean. Each must match direct children only.
	CleanPatterns []string `yaml:"clean_patterns" json:"clean_patterns" toml:"clean_patterns"`

	// Path is the file the values were loaded from. Empty when no file was found.
	Path string `yaml:"-" json:"-" toml:"-"`
}

// Load reads and decodes the config file at path. The decoder is picked
// from the extension. Unknown keys are rejected.
// Relative directory paths in the file are resolved against the file's
// own directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Pick the decoder by extension, case-insensitively.
	f := &File{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, f)
	case ".toml":
		err = decodeTOML(data, f)
	case ".json", ".jsonc":
		err = decodeJSON(data, f)
	default:
		return nil, fmt.Errorf("%w: %q (use one of %s)", ErrUnsupportedFormat, ext, strings.Join(Extensions, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if f.Format != "" {
		if _, err := model.ParseArchiveFormat(f.Format); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	// clean_patterns are globbed inside the build directory; a pattern that
	// could reach outside it is rejected up front.
	for _, pattern := range f.CleanPatterns {
		if err := builder.ValidateCleanPattern(pattern); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	// Record the source and anchor relative directories to it.
	f.Path = path
	f.resolvePaths(filepath.Dir(path))
	return f, nil
}

// Discover looks for a config file in dir. It returns ("", nil) when none
// of the candidate names exist.
func Discover(dir string) (string, error) {
	// The first existing candidate wins; later ones are not looked at, so
	// a project with both .yaml and .toml silently uses the YAML file.
	for _, ext := range Extensions {
		candidate := filepath.Join(dir, BaseName+ext)
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, nil
		}
		// Permission errors and the like are reported rather than skipped.
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to check config file %s: %w", candidate, err)
		}
	}
	return "", nil
}

// LoadOrDiscover loads path when it is non-empty, otherwise the file found
// by Discover in dir. With no file present it returns an empty File.
func LoadOrDiscover(path, dir string) (*File, error) {
	if path == "" {
		found, err := Discover(dir)
		if err != nil {
			return nil, err
		}
		if found == "" {
			return &File{}, nil
		}
		path = found
	}
	return Load(path)
}

// resolvePaths makes the directory settings absolute against base.
func (f *File) resolvePaths(base string) {
	for _, p := range []*string{&f.Source, &f.Build, &f.Output, &f.Headers} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// decodeYAML decodes YAML strictly. An empty document leaves f unchanged.
func decodeYAML(data []byte, f *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// decodeTOML decodes TOML and fails on keys File does not declare.
func decodeTOML(data []byte, f *File) error {
	md, err := toml.Decode(string(data), f)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// decodeJSON accepts JSON with comments and trailing commas (JSONC): jsonc
// strips them before the strict standard decoder runs.
func decodeJSON(data []byte, f *File) error {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	return dec.Decode(f)
}
