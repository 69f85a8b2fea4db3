// Package catalog holds the read-only static data the engine, scheduler,
// and predictor all consume: tracks, drivers, tire compounds, and
// scenarios. Records are immutable for the lifetime of the process once
// loaded.
package catalog

// Track describes a circuit's geometry and race-affecting properties.
type Track struct {
	ID                 string     `yaml:"id" json:"id"`
	Name                string     `yaml:"name" json:"name"`
	SectorLengthsMeters [3]float64 `yaml:"sector_lengths_m" json:"sector_lengths_m"`
	PitLossSeconds      float64    `yaml:"pit_loss_seconds" json:"pit_loss_seconds"`
	BaseIncidentRate    float64    `yaml:"base_incident_rate" json:"base_incident_rate"`
	DRSZones            int        `yaml:"drs_zones" json:"drs_zones"`
	Abrasion            float64    `yaml:"abrasion" json:"abrasion"`
	Downforce           float64    `yaml:"downforce" json:"downforce"`
	OvertakeDifficulty  float64    `yaml:"overtake_difficulty" json:"overtake_difficulty"`
}

// LengthMeters returns the track's total lap length.
func (t Track) LengthMeters() float64 {
	return t.SectorLengthsMeters[0] + t.SectorLengthsMeters[1] + t.SectorLengthsMeters[2]
}

// TrackSummary is the lightweight listing record for list_tracks().
type TrackSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Driver is a read-only catalog record describing a competitor's
// persistent attributes. Per-race mutable state lives on engine.Car,
// seeded from this record at race initialization.
type Driver struct {
	Code           string             `yaml:"code" json:"code"`
	Name           string             `yaml:"name" json:"name"`
	Team           string             `yaml:"team" json:"team"`
	Skill          float64            `yaml:"skill" json:"skill"`
	Aggression     float64            `yaml:"aggression" json:"aggression"`
	TireManagement float64            `yaml:"tire_management" json:"tire_management"`
	WetMultiplier  float64            `yaml:"wet_multiplier" json:"wet_multiplier"`
	TrackAffinity  map[string]float64 `yaml:"track_affinity" json:"track_affinity"`
}

// Affinity returns the driver's affinity bonus for a track, defaulting to
// 1.0 (neutral) when the track isn't listed.
func (d Driver) Affinity(trackID string) float64 {
	if v, ok := d.TrackAffinity[trackID]; ok {
		return v
	}
	return 1.0
}

// Compound is a tire compound's pace and degradation profile.
type Compound struct {
	Name           string  `yaml:"name" json:"name"`
	BasePaceOffset float64 `yaml:"base_pace_offset" json:"base_pace_offset"`
	WearPerLap     float64 `yaml:"wear_per_lap" json:"wear_per_lap"`
	WearExponent   float64 `yaml:"wear_exponent" json:"wear_exponent"`
	// MinStintLaps is the shortest stint this compound is expected to
	// survive; used by the pit-strategy rule in engine/pit.go.
	MinStintLaps int `yaml:"min_stint_laps" json:"min_stint_laps"`
}

// GridSlot places one driver on the starting grid with a starting compound.
type GridSlot struct {
	DriverCode     string `yaml:"driver_code" json:"driver_code"`
	StartPosition  int    `yaml:"start_position" json:"start_position"`
	StartCompound  string `yaml:"start_compound" json:"start_compound"`
}

// WeatherProfile describes a scenario's starting weather. Envelope records
// how far the weather may drift over the race; the engine's weather drift
// does not read it, so drift is bounded only to [0, 1] rain probability.
type WeatherProfile struct {
	Initial         string  `yaml:"initial" json:"initial"`
	RainProbability float64 `yaml:"rain_probability" json:"rain_probability"`
	Envelope        float64 `yaml:"envelope" json:"envelope"`
	TrackTemp       float64 `yaml:"track_temp" json:"track_temp"`
	Wind            float64 `yaml:"wind" json:"wind"`
}

// Prescript is a scripted race-director event, fired when the session's
// tick reaches Tick.
type Prescript struct {
	Tick  uint64 `yaml:"tick" json:"tick"`
	Type  string `yaml:"type" json:"type"`
	Value string `yaml:"value" json:"value"`
}

// Scenario is the starting definition for a race: grid, lap count,
// weather baseline, and any scripted director events.
type Scenario struct {
	ID             string         `yaml:"id" json:"id"`
	Name           string         `yaml:"name" json:"name"`
	TrackID        string         `yaml:"track_id" json:"track_id"`
	Laps           int            `yaml:"laps" json:"laps"`
	Grid           []GridSlot     `yaml:"grid" json:"grid"`
	WeatherProfile WeatherProfile `yaml:"weather_profile" json:"weather_profile"`
	Prescripts     []Prescript    `yaml:"prescripts" json:"prescripts"`
}

// ScenarioSummary is the lightweight listing record for list_scenarios().
type ScenarioSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	TrackID string `json:"track_id"`
	Laps    int    `json:"laps"`
}

func (s Scenario) Summary() ScenarioSummary {
	return ScenarioSummary{ID: s.ID, Name: s.Name, TrackID: s.TrackID, Laps: s.Laps}
}
