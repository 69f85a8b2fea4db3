package catalog

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Catalog is the process-wide, immutable set of tracks, drivers,
// compounds, and scenarios. It is read-only after Load returns and is
// safe to share across every session and ensemble member.
type Catalog struct {
	tracks    map[string]Track
	drivers   map[string]Driver
	compounds map[string]Compound
	scenarios map[string]Scenario
}

type tracksFile struct {
	Tracks []Track `mapstructure:"tracks" yaml:"tracks"`
}

type driversFile struct {
	Drivers []Driver `mapstructure:"drivers" yaml:"drivers"`
}

type compoundsFile struct {
	Compounds []Compound `mapstructure:"compounds" yaml:"compounds"`
}

type scenariosFile struct {
	Scenarios []Scenario `mapstructure:"scenarios" yaml:"scenarios"`
}

// Load reads tracks.yaml, drivers.yaml, compounds.yaml, and scenarios.yaml
// from dir. Each file is read with its own viper instance, mirroring the
// one-config-per-domain-object shape used elsewhere in this codebase for
// loading YAML-backed config (see the training-config loader this pattern
// is grounded on).
func Load(dir string) (*Catalog, error) {
	var tf tracksFile
	if err := loadYAML(dir, "tracks.yaml", &tf); err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	var df driversFile
	if err := loadYAML(dir, "drivers.yaml", &df); err != nil {
		return nil, fmt.Errorf("load drivers: %w", err)
	}
	var cf compoundsFile
	if err := loadYAML(dir, "compounds.yaml", &cf); err != nil {
		return nil, fmt.Errorf("load compounds: %w", err)
	}
	var sf scenariosFile
	if err := loadYAML(dir, "scenarios.yaml", &sf); err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}

	cat := &Catalog{
		tracks:    make(map[string]Track, len(tf.Tracks)),
		drivers:   make(map[string]Driver, len(df.Drivers)),
		compounds: make(map[string]Compound, len(cf.Compounds)),
		scenarios: make(map[string]Scenario, len(sf.Scenarios)),
	}
	for _, t := range tf.Tracks {
		cat.tracks[t.ID] = t
	}
	for _, d := range df.Drivers {
		cat.drivers[d.Code] = d
	}
	for _, c := range cf.Compounds {
		cat.compounds[c.Name] = c
	}
	for _, s := range sf.Scenarios {
		cat.scenarios[s.ID] = s
	}
	return cat, nil
}

// loadYAML reads a single YAML file via viper, then re-marshals its raw
// settings back through yaml.v3 into dst. The double pass lets viper's
// file-watching and multi-format plumbing sit in front of a plain,
// strictly-typed yaml.v3 unmarshal for the final struct.
func loadYAML(dir, filename string, dst interface{}) error {
	vp := viper.New()
	vp.SetConfigFile(filepath.Join(dir, filename))
	vp.SetConfigType("yaml")
	vp.AddConfigPath(dir)
	if err := vp.ReadInConfig(); err != nil {
		return err
	}

	raw, err := yaml.Marshal(vp.AllSettings())
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, dst)
}

var ErrNotFound = fmt.Errorf("catalog: not found")

func (c *Catalog) ListTracks() []TrackSummary {
	out := make([]TrackSummary, 0, len(c.tracks))
	for _, t := range c.tracks {
		out = append(out, TrackSummary{ID: t.ID, Name: t.Name})
	}
	return out
}

func (c *Catalog) GetTrack(id string) (Track, error) {
	t, ok := c.tracks[id]
	if !ok {
		return Track{}, fmt.Errorf("%w: track %q", ErrNotFound, id)
	}
	return t, nil
}

func (c *Catalog) ListDrivers() []Driver {
	out := make([]Driver, 0, len(c.drivers))
	for _, d := range c.drivers {
		out = append(out, d)
	}
	return out
}

func (c *Catalog) GetDriver(code string) (Driver, error) {
	d, ok := c.drivers[code]
	if !ok {
		return Driver{}, fmt.Errorf("%w: driver %q", ErrNotFound, code)
	}
	return d, nil
}

func (c *Catalog) GetCompound(name string) (Compound, error) {
	comp, ok := c.compounds[name]
	if !ok {
		return Compound{}, fmt.Errorf("%w: compound %q", ErrNotFound, name)
	}
	return comp, nil
}

// CompoundNamesByMinStint returns compound names sorted from the shortest
// expected stint life to the longest, used by the pit-strategy rule: "the
// shortest currently-available compound that will plausibly reach the end
// of the race."
func (c *Catalog) CompoundNamesByMinStint() []string {
	out := make([]string, 0, len(c.compounds))
	for name := range c.compounds {
		out = append(out, name)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && c.compounds[out[j-1]].MinStintLaps > c.compounds[out[j]].MinStintLaps; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func (c *Catalog) ListScenarios() []ScenarioSummary {
	out := make([]ScenarioSummary, 0, len(c.scenarios))
	for _, s := range c.scenarios {
		out = append(out, s.Summary())
	}
	return out
}

func (c *Catalog) GetScenario(id string) (Scenario, error) {
	s, ok := c.scenarios[id]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: scenario %q", ErrNotFound, id)
	}
	return s, nil
}
