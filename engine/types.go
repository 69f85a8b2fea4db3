// Package engine implements the pure, deterministic race-state tick
// function: Tick(state, ctx, controls, rng) -> (state', events, error). It performs
// no I/O and reads no wall clock; every source of variation is threaded
// through the explicit Rand argument.
package engine

// Weather is the track's current precipitation condition.
type Weather string

const (
	Dry          Weather = "DRY"
	Intermediate Weather = "INTERMEDIATE"
	Wet          Weather = "WET"
)

// RaceControlState is the global flag governing legal on-track behavior.
// Exactly one of these is active at any tick.
type RaceControlState string

const (
	Green     RaceControlState = "GREEN"
	Yellow    RaceControlState = "YELLOW"
	VSC       RaceControlState = "VSC"
	SafetyCar RaceControlState = "SAFETY_CAR"
	RedFlag   RaceControlState = "RED_FLAG"
)

// CarStatus is a car's current participation state.
type CarStatus string

const (
	Racing CarStatus = "RACING"
	InPit  CarStatus = "IN_PIT"
	Pitted CarStatus = "PITTED"
	DNF    CarStatus = "DNF"
)

// DrivingMode is the driver's current pace strategy.
type DrivingMode string

const (
	ModePush    DrivingMode = "PUSH"
	ModeBalance DrivingMode = "BALANCED"
	ModeConserve DrivingMode = "CONSERVE"
)

// CommandType is a command armed on a car's strategy, issued by the viewer.
type CommandType string

const (
	CommandNone         CommandType = "NONE"
	CommandBoxThisLap   CommandType = "BOX_THIS_LAP"
	CommandPush         CommandType = "PUSH"
	CommandConserve     CommandType = "CONSERVE"
)

// EventType enumerates the kinds of events the tick function can emit.
type EventType string

const (
	EventRaceStart         EventType = "RACE_START"
	EventOvertake          EventType = "OVERTAKE"
	EventPitStop           EventType = "PIT_STOP"
	EventSafetyCarDeployed EventType = "SAFETY_CAR_DEPLOYED"
	EventSafetyCarEnding   EventType = "SAFETY_CAR_ENDING"
	EventVSCDeployed       EventType = "VSC_DEPLOYED"
	EventVSCEnding         EventType = "VSC_ENDING"
	EventRedFlag           EventType = "RED_FLAG"
	EventDNF               EventType = "DNF"
	EventFastestLap        EventType = "FASTEST_LAP"
	EventWeatherChange     EventType = "WEATHER_CHANGE"
	EventModeChange        EventType = "MODE_CHANGE"
	EventDRSEnabled        EventType = "DRS_ENABLED"
)

// DirectorEventType enumerates the race-director injections a Controls
// value may carry into a tick.
type DirectorEventType string

const (
	InjectVSC           DirectorEventType = "VSC"
	InjectSafetyCar     DirectorEventType = "SAFETY_CAR"
	InjectRedFlag       DirectorEventType = "RED_FLAG"
	InjectGreen         DirectorEventType = "GREEN"
	InjectWeatherChange DirectorEventType = "WEATHER_CHANGE"
)

// TickDurationMs is the simulated duration of one tick.
const TickDurationMs = 100

// SafetyCarMinDwellLaps is the minimum number of laps the safety car stays
// out before it is eligible to end.
const SafetyCarMinDwellLaps = 2

// MaxStoredEvents is the number of most recent events retained on State;
// earlier events are still reflected in RaceStats.
const MaxStoredEvents = 256
