// Package scheduler runs a single live race: it drives engine.Tick on a
// wall-clock cadence scaled by a viewer-controlled speed multiplier,
// accepts pause/step/speed/strategy/race-director commands, and publishes
// RaceState snapshots to at most one subscribed viewer at a time,
// coalescing snapshots a slow viewer can't keep up with.
package scheduler

import (
	"context"
	"sync"
	"time"

	"racesim/catalog"
	"racesim/engine"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// pollInterval is the wall-clock resolution at which the session checks
// whether a simulated tick is owed. It is independent of TickDurationMs:
// it just has to be fine enough that integer speed multipliers up to
// maxSpeed don't visibly stutter.
const pollInterval = 20 * time.Millisecond

// Session owns one live race's mutable state and is safe for concurrent
// Submit calls from a websocket read pump while Run drives the simulation
// loop.
type Session struct {
	mu sync.Mutex

	state    *engine.RaceState
	raceCtx  engine.RaceContext
	scenario catalog.Scenario
	rng      *engine.Rand

	speed          float64
	paused         bool
	prescriptIndex int

	pendingDriverCommands []engine.DriverCommand
	pendingDirectorEvents []engine.DirectorEvent

	stepRequested chan int
	skipRequested chan int
	snapshots     chan engine.RaceState

	accumulator float64
	logger      zerolog.Logger

	lastErr error
}

// NewSession initializes a session from a scenario already resolved to a
// concrete track and driver set, ready to Run.
func NewSession(seed uint64, scenario catalog.Scenario, track catalog.Track, drivers map[string]catalog.Driver, raceCtx engine.RaceContext) *Session {
	state := engine.NewRaceState(seed, scenario, track, drivers)
	return &Session{
		state:         state,
		raceCtx:       raceCtx,
		scenario:      scenario,
		rng:           engine.NewRand(seed),
		speed:         1.0,
		stepRequested: make(chan int, 1),
		skipRequested: make(chan int, 1),
		snapshots:     make(chan engine.RaceState, 1),
		logger:        log.With().Str("component", "scheduler").Str("scenario", scenario.ID).Logger(),
	}
}

// Snapshots returns the channel a viewer subscribes to; at most one
// snapshot is ever buffered, so a receiver that falls behind only ever
// sees the newest race state, never a backlog.
func (s *Session) Snapshots() <-chan engine.RaceState {
	return s.snapshots
}

// State returns a deep copy of the current race state, for the REST
// "current snapshot" endpoint.
func (s *Session) State() *engine.RaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Submit validates and applies a viewer command. Pause/resume/speed take
// effect immediately; driver and race-director commands are queued and
// consumed by the next simulated tick.
func (s *Session) Submit(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Type {
	case CommandPause:
		s.paused = true
	case CommandResume:
		s.paused = false
	case CommandStep:
		count := cmd.Count
		if count <= 0 {
			count = 1
		}
		select {
		case <-s.stepRequested:
		default:
		}
		select {
		case s.stepRequested <- count:
		default:
		}
	case CommandSkipToLap:
		select {
		case <-s.skipRequested:
		default:
		}
		select {
		case s.skipRequested <- cmd.Lap:
		default:
		}
	case CommandSetSpeed:
		s.speed = cmd.Speed
	case CommandDriver:
		s.pendingDriverCommands = append(s.pendingDriverCommands, engine.DriverCommand{
			Driver: cmd.Driver,
			Cmd:    cmd.DriverCmd,
		})
	case CommandInjectVSC:
		s.pendingDirectorEvents = append(s.pendingDirectorEvents, engine.DirectorEvent{Type: engine.InjectVSC})
	case CommandInjectSafetyCar:
		s.pendingDirectorEvents = append(s.pendingDirectorEvents, engine.DirectorEvent{Type: engine.InjectSafetyCar})
	case CommandInjectRedFlag:
		s.pendingDirectorEvents = append(s.pendingDirectorEvents, engine.DirectorEvent{Type: engine.InjectRedFlag})
	case CommandInjectGreen:
		s.pendingDirectorEvents = append(s.pendingDirectorEvents, engine.DirectorEvent{Type: engine.InjectGreen})
	case CommandInjectWeather:
		s.pendingDirectorEvents = append(s.pendingDirectorEvents, engine.DirectorEvent{Type: engine.InjectWeatherChange, Value: cmd.Weather})
	}
	return nil
}

// Run drives the simulation loop until ctx is cancelled or the race
// finishes. An invariant violation is logged, ends the session, and is
// returned as Run's error, since it indicates a bug in Tick itself rather
// than a bad viewer input.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.publish()

	for range channerics.NewTicker(ctx.Done(), pollInterval) {
		if s.finished() {
			break
		}

		select {
		case n := <-s.stepRequested:
			s.runSteps(n)
			continue
		default:
		}

		select {
		case lap := <-s.skipRequested:
			s.skipToLap(lap)
			continue
		default:
		}

		s.mu.Lock()
		paused := s.paused
		speed := s.speed
		s.mu.Unlock()

		if paused {
			continue
		}

		s.accumulator += speed * (float64(pollInterval) / float64(engine.TickDurationMs*time.Millisecond))
		for s.accumulator >= 1.0 {
			s.accumulator -= 1.0
			if s.finished() {
				s.accumulator = 0
				break
			}
			s.advance()
		}
	}

	return s.lastErr
}

func (s *Session) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsFinished || s.lastErr != nil
}

// leaderLap returns the furthest lap any car has reached, the same metric
// skip_to_lap's target is measured against.
func (s *Session) leaderLap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	lap := 0
	for i := range s.state.Cars {
		if s.state.Cars[i].Lap > lap {
			lap = s.state.Cars[i].Lap
		}
	}
	return lap
}

// runSteps advances exactly n ticks, publishing a snapshot after each one
// as usual, then pauses so the caller's view settles on the final tick.
func (s *Session) runSteps(n int) {
	for i := 0; i < n && !s.finished(); i++ {
		s.advance()
	}
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// skipToLap advances ticks until the leader's lap reaches target or the
// race finishes, publishing only the final snapshot: a viewer asking to
// jump ahead doesn't want every intermediate tick streamed to it.
func (s *Session) skipToLap(target int) {
	for !s.finished() && s.leaderLap() < target {
		s.tick()
	}
	s.publish()
}

// advance runs exactly one engine.Tick, draining any commands queued
// since the last tick and firing any scenario prescript now due, then
// publishes the resulting snapshot.
func (s *Session) advance() {
	s.tick()
	s.publish()
}

// tick runs exactly one engine.Tick without publishing, so callers that
// need to run several ticks before a viewer sees anything (skip_to_lap)
// can drive it directly.
func (s *Session) tick() {
	s.mu.Lock()
	driverCmds := s.pendingDriverCommands
	s.pendingDriverCommands = nil
	directorEvents := s.pendingDirectorEvents
	s.pendingDirectorEvents = nil
	nextTick := s.state.Meta.Tick + 1
	s.mu.Unlock()

	for s.prescriptIndex < len(s.scenario.Prescripts) && s.scenario.Prescripts[s.prescriptIndex].Tick <= nextTick {
		p := s.scenario.Prescripts[s.prescriptIndex]
		directorEvents = append(directorEvents, engine.DirectorEvent{
			Type:  engine.DirectorEventType(p.Type),
			Value: p.Value,
		})
		s.prescriptIndex++
	}

	controls := engine.Controls{
		Macros:         engine.DefaultMacros(),
		DirectorEvents: directorEvents,
		DriverCommands: driverCmds,
	}

	newState, events, err := engine.Tick(s.state, s.raceCtx, controls, s.rng)
	s.mu.Lock()
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Error().Err(err).Msg("tick invariant violation, ending session")
		return
	}
	s.state = newState
	s.mu.Unlock()

	for _, ev := range events {
		s.logger.Debug().Str("type", string(ev.Type)).Str("description", ev.Description).Msg("event")
	}
}

// publish pushes the current state to the snapshot channel, dropping any
// value already waiting there so the channel never holds more than the
// single newest snapshot.
func (s *Session) publish() {
	snap := s.State()
	select {
	case <-s.snapshots:
	default:
	}
	select {
	case s.snapshots <- *snap:
	default:
	}
}
