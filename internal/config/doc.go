// Package config loads the optional release configuration file.
//
// A project can pin its packaging settings (library name, directories,
// target platform, archive format, build image, extra clean patterns) in
// one of the following files at its root, searched in this order:
//
//   - .ink-release.yaml
//   - .ink-release.yml
//   - .ink-release.toml
//   - .ink-release.json
//   - .ink-release.jsonc
//
// The format is chosen by file extension. JSON files may contain comments
// and trailing commas; they are normalized with github.com/tidwall/jsonc
// before decoding. Values from the file are overridden by explicit
// command-line flags.
package config
