package scheduler

import (
	"fmt"

	"racesim/engine"
)

// CommandType enumerates the commands a viewer may submit to a live
// session, over and above the per-driver strategy commands engine.Controls
// already carries.
type CommandType string

const (
	CommandPause           CommandType = "PAUSE"
	CommandResume          CommandType = "RESUME"
	CommandStep            CommandType = "STEP"
	CommandSkipToLap       CommandType = "SKIP_TO_LAP"
	CommandSetSpeed        CommandType = "SET_SPEED"
	CommandDriver          CommandType = "DRIVER_COMMAND"
	CommandInjectVSC       CommandType = "INJECT_VSC"
	CommandInjectSafetyCar CommandType = "INJECT_SAFETY_CAR"
	CommandInjectRedFlag   CommandType = "INJECT_RED_FLAG"
	CommandInjectGreen     CommandType = "INJECT_GREEN"
	CommandInjectWeather   CommandType = "INJECT_WEATHER_CHANGE"
)

// minSpeed and maxSpeed bound the SET_SPEED multiplier a viewer may request.
const (
	minSpeed = 0.25
	maxSpeed = 16.0
)

// Command is the wire shape a viewer submits to a running session.
type Command struct {
	Type      CommandType        `json:"type"`
	Speed     float64            `json:"speed,omitempty"`
	Driver    string             `json:"driver,omitempty"`
	DriverCmd engine.CommandType `json:"driver_cmd,omitempty"`
	Weather   string             `json:"weather,omitempty"`
	Count     int                `json:"count,omitempty"`
	Lap       int                `json:"lap,omitempty"`
}

// Validate reports whether the command is well-formed. It does not check
// whether the command is legal against the current race state (e.g.
// clearing a safety car too early): that is Tick's job, via the
// race-control legality table.
func (c Command) Validate() error {
	switch c.Type {
	case CommandPause, CommandResume,
		CommandInjectVSC, CommandInjectSafetyCar, CommandInjectRedFlag, CommandInjectGreen:
		return nil
	case CommandStep:
		if c.Count < 0 {
			return fmt.Errorf("step count %d must be non-negative", c.Count)
		}
		return nil
	case CommandSkipToLap:
		if c.Lap <= 0 {
			return fmt.Errorf("skip_to_lap target %d must be positive", c.Lap)
		}
		return nil
	case CommandSetSpeed:
		if c.Speed < minSpeed || c.Speed > maxSpeed {
			return fmt.Errorf("speed %v outside [%v, %v]", c.Speed, minSpeed, maxSpeed)
		}
		return nil
	case CommandDriver:
		if c.Driver == "" {
			return fmt.Errorf("driver command missing driver code")
		}
		switch c.DriverCmd {
		case engine.CommandBoxThisLap, engine.CommandPush, engine.CommandConserve:
			return nil
		default:
			return fmt.Errorf("unrecognized driver command %q", c.DriverCmd)
		}
	case CommandInjectWeather:
		switch engine.Weather(c.Weather) {
		case engine.Dry, engine.Intermediate, engine.Wet:
			return nil
		default:
			return fmt.Errorf("unrecognized weather value %q", c.Weather)
		}
	default:
		return fmt.Errorf("unrecognized command type %q", c.Type)
	}
}
