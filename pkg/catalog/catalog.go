// Package catalog embeds the built-in scenarios, roles, complications and
// chain definitions.
package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/complications"
	"github.com/ormasoftchile/ehbo/pkg/roles"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

//go:embed content
var content embed.FS

const (
	scenariosDir      = "scenarios"
	rolesFile         = "roles.yaml"
	complicationsFile = "complications.yaml"
	chainsFile        = "chains.yaml"
)

// Bundle is everything a runtime needs from authored content.
type Bundle struct {
	Scenarios     *scenario.Library
	Roles         []roles.Role
	Complications []complications.Complication
	Chains        []chain.Definition
}

// Builtin returns the embedded content.
func Builtin() fs.FS {
	sub, err := fs.Sub(content, "content")
	if err != nil {
		panic(err)
	}
	return sub
}

// Load reads the embedded bundle.
func Load() (*Bundle, error) {
	return LoadFS(Builtin())
}

// LoadDir reads a bundle from dir, falling back to the embedded content for
// any file the directory does not provide.
func LoadDir(dir string) (*Bundle, error) {
	return LoadFS(overlay{primary: os.DirFS(filepath.Clean(dir)), fallback: Builtin()})
}

// LoadFS reads a bundle laid out like the embedded content.
func LoadFS(fsys fs.FS) (*Bundle, error) {
	lib, err := scenario.LoadFS(fsys, scenariosDir)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Scenarios: lib}

	var rf struct {
		Roles []roles.Role `yaml:"roles"`
	}
	if err := decodeFile(fsys, rolesFile, &rf); err != nil {
		return nil, err
	}
	b.Roles = rf.Roles

	var cf struct {
		Complications []complications.Complication `yaml:"complications"`
	}
	if err := decodeFile(fsys, complicationsFile, &cf); err != nil {
		return nil, err
	}
	b.Complications = cf.Complications

	data, err := fs.ReadFile(fsys, chainsFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", chainsFile, err)
	}
	b.Chains, err = chain.LoadDefinitions(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", chainsFile, err)
	}
	return b, nil
}

func decodeFile(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// overlay serves files from primary, then fallback.
type overlay struct {
	primary, fallback fs.FS
}

func (o overlay) Open(name string) (fs.File, error) {
	if f, err := o.primary.Open(name); err == nil {
		return f, nil
	}
	return o.fallback.Open(name)
}
