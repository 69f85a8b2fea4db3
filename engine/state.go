package engine

import "racesim/catalog"

// SchemaVersion is the current RaceState wire/storage schema version.
const SchemaVersion = 1

// Meta carries the race's identifying, replay-relevant metadata.
type Meta struct {
	Seed      uint64 `json:"seed"`
	Tick      uint64 `json:"tick"`
	SimTimeMs uint64 `json:"sim_time_ms"`
	LapsTotal int    `json:"laps_total"`
}

// WeatherState is the track's current atmospheric condition.
type WeatherState struct {
	Condition       Weather `json:"condition"`
	RainProbability float64 `json:"rain_probability"`
	TrackTemp       float64 `json:"track_temp"`
	Wind            float64 `json:"wind"`
}

// RaceStats are running totals that survive event trimming.
type RaceStats struct {
	TotalOvertakes   int     `json:"total_overtakes"`
	TotalPitStops    int     `json:"total_pit_stops"`
	FastestLapTime   float64 `json:"fastest_lap_time,omitempty"`
	FastestLapDriver string  `json:"fastest_lap_driver,omitempty"`
}

// controlState is internal bookkeeping for race_control transitions; it is
// not exposed on the wire but must travel with the state for determinism
// (it affects when SC/VSC/yellow may legally clear).
type controlState struct {
	SafetyCarDeployedLap int    `json:"safety_car_deployed_lap,omitempty"`
	WeatherDriftTick     uint64 `json:"weather_drift_tick,omitempty"`
	YellowClearLap       int    `json:"yellow_clear_lap,omitempty"`
	VSCEndTick           uint64 `json:"vsc_end_tick,omitempty"`
}

// TireState describes a car's current tire set.
type TireState struct {
	Compound string  `json:"compound"`
	AgeLaps  int     `json:"age_laps"`
	Wear     float64 `json:"wear"`
}

// CarIdentity is fixed for the duration of a race.
type CarIdentity struct {
	DriverCode     string  `json:"driver_code"`
	Team           string  `json:"team"`
	BaseSkill      float64 `json:"base_skill"`
	Aggression     float64 `json:"aggression"`
	TireManagement float64 `json:"tire_management"`
	WetMultiplier  float64 `json:"wet_multiplier"`
	TrackAffinity  float64 `json:"track_affinity"`
}

// CarTelemetry is the car's instantaneous physical state.
type CarTelemetry struct {
	SpeedKPH    float64   `json:"speed_kph"`
	FuelKg      float64   `json:"fuel_kg"`
	LapProgress float64   `json:"lap_progress"`
	Tire        TireState `json:"tire"`
}

// CarSystems are the car's driver-assist systems.
type CarSystems struct {
	DRSActive   bool    `json:"drs_active"`
	ERSBattery  float64 `json:"ers_battery"`
	ERSDeployed bool    `json:"ers_deployed"`
}

// CarStrategy is the car's current strategic intent.
type CarStrategy struct {
	DrivingMode   DrivingMode `json:"driving_mode"`
	ActiveCommand CommandType `json:"active_command"`
}

// CarTiming is the car's classification and lap-timing state.
type CarTiming struct {
	Position        int       `json:"position"`
	Lap             int       `json:"lap"`
	Sector          int       `json:"sector"`
	LastLapTime     float64   `json:"last_lap_time"`
	BestLapTime     float64   `json:"best_lap_time"`
	PitStops        int       `json:"pit_stops"`
	Status          CarStatus `json:"status"`
	GapToLeader     float64   `json:"gap_to_leader"`
	IntervalToAhead float64   `json:"interval_to_ahead"`
	InPitLane       bool      `json:"in_pit_lane"`
}

// Car is one competitor's complete state, owned exclusively by the
// enclosing RaceState. It is decomposed into five cohesive groups per the
// data model: identity, telemetry, systems, strategy, timing.
type Car struct {
	CarIdentity
	CarTelemetry
	CarSystems
	CarStrategy
	CarTiming

	// pitBoxArmed tracks whether the car boxes when it next crosses the
	// line; not exposed on the wire. Set by armPitStop or reactToWeather
	// and cleared on pit entry.
	pitBoxArmed bool

	// pitTicksRemaining counts down the simulated pit-lane service time
	// once a car enters the box; the car is held at Status InPit until it
	// reaches zero.
	pitTicksRemaining int

	// nextCompound is the tire compound a car will fit when it leaves the
	// box, chosen when the pit stop is armed so the choice stays
	// reproducible even if the catalog's compound ordering is queried
	// again later in the same tick.
	nextCompound string

	// lapStartTick is the tick this car crossed the line to begin its
	// current lap, used to derive LastLapTime when it crosses again.
	lapStartTick uint64
}

// Event is a single, timestamped occurrence recorded during a tick.
type Event struct {
	Tick        uint64                 `json:"tick"`
	Lap         int                    `json:"lap"`
	Type        EventType              `json:"type"`
	Description string                 `json:"description"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

// RaceState is the single, authoritative world snapshot at a given tick.
type RaceState struct {
	SchemaVersion int              `json:"schema_version"`
	Meta          Meta             `json:"meta"`
	TrackID       string           `json:"track_id"`
	Weather       WeatherState     `json:"weather"`
	RaceControl   RaceControlState `json:"race_control"`
	Cars          []Car            `json:"cars"`
	Events        []Event          `json:"events"`
	IsFinished    bool             `json:"is_finished"`
	Stats         RaceStats        `json:"stats"`

	control controlState
}

// NewRaceState initializes a RaceState from a Scenario, its Track, and the
// Driver catalog records for every grid slot. It is the race's sole
// constructor; afterward only Tick mutates the state.
func NewRaceState(seed uint64, scenario catalog.Scenario, track catalog.Track, drivers map[string]catalog.Driver) *RaceState {
	cars := make([]Car, 0, len(scenario.Grid))
	for _, slot := range scenario.Grid {
		d := drivers[slot.DriverCode]
		cars = append(cars, Car{
			CarIdentity: CarIdentity{
				DriverCode:     d.Code,
				Team:           d.Team,
				BaseSkill:      d.Skill,
				Aggression:     d.Aggression,
				TireManagement: d.TireManagement,
				WetMultiplier:  d.WetMultiplier,
				TrackAffinity:  d.Affinity(track.ID),
			},
			CarTelemetry: CarTelemetry{
				FuelKg: startingFuelKg(scenario.Laps),
				Tire: TireState{
					Compound: slot.StartCompound,
					AgeLaps:  0,
					Wear:     0,
				},
			},
			CarSystems: CarSystems{
				ERSBattery: 2.0,
			},
			CarStrategy: CarStrategy{
				DrivingMode:   ModeBalance,
				ActiveCommand: CommandNone,
			},
			CarTiming: CarTiming{
				Position:        slot.StartPosition,
				Lap:             0,
				Sector:          0,
				Status:          Racing,
				IntervalToAhead: noCarAheadGapSeconds,
			},
		})
	}

	state := &RaceState{
		SchemaVersion: SchemaVersion,
		Meta: Meta{
			Seed:      seed,
			Tick:      0,
			SimTimeMs: 0,
			LapsTotal: scenario.Laps,
		},
		TrackID: track.ID,
		Weather: WeatherState{
			Condition:       Weather(scenario.WeatherProfile.Initial),
			RainProbability: scenario.WeatherProfile.RainProbability,
			TrackTemp:       scenario.WeatherProfile.TrackTemp,
			Wind:            scenario.WeatherProfile.Wind,
		},
		RaceControl: Green,
		Cars:        cars,
	}

	state.appendEvent(Event{
		Tick:        0,
		Lap:         0,
		Type:        EventRaceStart,
		Description: "race start",
	})
	return state
}

// startingFuelKg is a simple linear fuel load: enough for the race distance
// plus a small safety margin, consumed at ~1.6kg/lap reference rate.
func startingFuelKg(laps int) float64 {
	return float64(laps)*1.65 + 3.0
}

// Clone returns a deep copy of the state, suitable for an ensemble member
// to own independently of the baseline.
func (s *RaceState) Clone() *RaceState {
	clone := *s
	clone.Cars = make([]Car, len(s.Cars))
	copy(clone.Cars, s.Cars)
	clone.Events = make([]Event, len(s.Events))
	copy(clone.Events, s.Events)
	return &clone
}

// appendEvent appends ev to the state's event log and to the running
// conservation stats, then trims the log to MaxStoredEvents. Trimming only
// ever removes from the front; events are never reordered.
func (s *RaceState) appendEvent(ev Event) {
	s.Events = append(s.Events, ev)
	switch ev.Type {
	case EventOvertake:
		s.Stats.TotalOvertakes++
	case EventPitStop:
		s.Stats.TotalPitStops++
	}
	if len(s.Events) > MaxStoredEvents {
		s.Events = append([]Event(nil), s.Events[len(s.Events)-MaxStoredEvents:]...)
	}
}

// CarByDriver returns a pointer to the car driven by code, or nil.
func (s *RaceState) CarByDriver(code string) *Car {
	for i := range s.Cars {
		if s.Cars[i].DriverCode == code {
			return &s.Cars[i]
		}
	}
	return nil
}
