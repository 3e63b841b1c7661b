package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"stomparena.io/internal/sim"
)

type Catalogs struct {
	Maps MapCatalog
}

type MapCatalog struct {
	ByName map[string]sim.Map
	Names  []string
	Digest string
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadMaps(filepath.Join(configDir, "maps"), &c.Maps); err != nil {
		return nil, err
	}
	return &c, nil
}

// Map returns the named arena. The built-in arena backs the default name
// when no file overrides it.
func (c *Catalogs) Map(name string) (sim.Map, error) {
	if m, ok := c.Maps.ByName[name]; ok {
		return m, nil
	}
	if name == sim.DefaultMap().Name {
		return sim.DefaultMap(), nil
	}
	return sim.Map{}, fmt.Errorf("unknown map %q", name)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadMaps(dir string, out *MapCatalog) error {
	out.ByName = map[string]sim.Map{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var m sim.Map
		if err := yaml.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("map %s: %w", filepath.Base(p), err)
		}
		if err := validateMap(m); err != nil {
			return fmt.Errorf("map %s: %w", filepath.Base(p), err)
		}
		if _, dup := out.ByName[m.Name]; dup {
			return fmt.Errorf("map %s: duplicate name %q", filepath.Base(p), m.Name)
		}
		out.ByName[m.Name] = m
		out.Names = append(out.Names, m.Name)
	}
	sort.Strings(out.Names)
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

func validateMap(m sim.Map) error {
	if m.Name == "" {
		return fmt.Errorf("missing name")
	}
	if m.MaxX <= m.MinX {
		return fmt.Errorf("empty bounds [%v, %v]", m.MinX, m.MaxX)
	}
	if len(m.Platforms) == 0 {
		return fmt.Errorf("no platforms")
	}
	for i, pl := range m.Platforms {
		if pl.W <= 0 {
			return fmt.Errorf("platform %d: non-positive width", i)
		}
		if pl.Y <= m.KillY {
			return fmt.Errorf("platform %d: below kill line", i)
		}
	}
	for i, sp := range m.Spawns {
		if sp[0] < m.MinX || sp[0] > m.MaxX {
			return fmt.Errorf("spawn %d outside bounds", i)
		}
	}
	return nil
}
