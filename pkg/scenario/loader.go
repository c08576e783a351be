package scenario

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and structurally decodes a scenario YAML.
// Returns a structural error if the YAML contains unknown fields.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a scenario from a reader.
func Load(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // strict: reject unknown fields
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	normalize(&sc)
	return &sc, nil
}

// normalize trims ids so hand-authored whitespace does not break edges.
func normalize(sc *Scenario) {
	sc.ID = strings.TrimSpace(sc.ID)
	for i := range sc.Steps {
		st := &sc.Steps[i]
		st.ID = strings.TrimSpace(st.ID)
		for j := range st.Options {
			st.Options[j].ID = strings.TrimSpace(st.Options[j].ID)
			st.Options[j].Next = strings.TrimSpace(st.Options[j].Next)
		}
	}
}

// LoadFS loads every *.yaml / *.yml file directly under dir in fsys into a
// Library. Files are read in name order.
func LoadFS(fsys fs.FS, dir string) (*Library, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	lib := NewLibrary()
	for _, name := range names {
		f, err := fsys.Open(path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		sc, err := Load(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := lib.Add(sc); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return lib, nil
}

// LoadDir loads a directory of scenario files from disk.
func LoadDir(dir string) (*Library, error) {
	return LoadFS(os.DirFS(dir), ".")
}

func isYAML(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
