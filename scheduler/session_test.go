package scheduler

import (
	"context"
	"testing"
	"time"

	"racesim/catalog"
	"racesim/engine"

	. "github.com/smartystreets/goconvey/convey"
)

func testTrack() catalog.Track {
	return catalog.Track{
		ID:                  "test_track",
		SectorLengthsMeters: [3]float64{1000, 1000, 1000},
		PitLossSeconds:      20,
		BaseIncidentRate:    0.0,
		Downforce:           0.4,
		OvertakeDifficulty:  0.3,
	}
}

func testDrivers() map[string]catalog.Driver {
	return map[string]catalog.Driver{
		"AAA": {Code: "AAA", Skill: 1.0, Aggression: 0.6, WetMultiplier: 1.0},
		"BBB": {Code: "BBB", Skill: 1.0, Aggression: 0.6, WetMultiplier: 1.0},
	}
}

func testScenario() catalog.Scenario {
	return catalog.Scenario{
		ID:      "test_scenario",
		TrackID: "test_track",
		Laps:    3,
		Grid: []catalog.GridSlot{
			{DriverCode: "AAA", StartPosition: 1, StartCompound: "MEDIUM"},
			{DriverCode: "BBB", StartPosition: 2, StartCompound: "MEDIUM"},
		},
		WeatherProfile: catalog.WeatherProfile{Initial: "DRY"},
	}
}

func testRaceContext() engine.RaceContext {
	return engine.NewRaceContext(testTrack(), []catalog.Compound{
		{Name: "MEDIUM", WearPerLap: 0.02, MinStintLaps: 10},
		{Name: "HARD", WearPerLap: 0.01, MinStintLaps: 20},
	}, []string{"HARD", "MEDIUM"})
}

func TestSessionPauseHoldsState(t *testing.T) {
	Convey("Given a paused session", t, func() {
		session := NewSession(1, testScenario(), testTrack(), testDrivers(), testRaceContext())
		So(session.Submit(Command{Type: CommandPause}), ShouldBeNil)

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		before := session.State().Meta.Tick
		go session.Run(ctx)
		<-ctx.Done()

		Convey("no ticks are advanced while paused", func() {
			So(session.State().Meta.Tick, ShouldEqual, before)
		})
	})
}

func TestSessionStepAdvancesExactlyOneTick(t *testing.T) {
	Convey("Given a paused session", t, func() {
		session := NewSession(2, testScenario(), testTrack(), testDrivers(), testRaceContext())
		So(session.Submit(Command{Type: CommandPause}), ShouldBeNil)

		Convey("a single STEP command advances exactly one tick", func() {
			So(session.Submit(Command{Type: CommandStep}), ShouldBeNil)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
			defer cancel()
			session.Run(ctx)

			So(session.State().Meta.Tick, ShouldEqual, uint64(1))
		})
	})
}

func TestCommandValidation(t *testing.T) {
	Convey("Given malformed commands", t, func() {
		So(Command{Type: CommandSetSpeed, Speed: 0}.Validate(), ShouldNotBeNil)
		So(Command{Type: CommandDriver, Driver: ""}.Validate(), ShouldNotBeNil)
		So(Command{Type: "NOT_A_COMMAND"}.Validate(), ShouldNotBeNil)

		Convey("well-formed commands pass", func() {
			So(Command{Type: CommandSetSpeed, Speed: 2.0}.Validate(), ShouldBeNil)
			So(Command{Type: CommandDriver, Driver: "AAA", DriverCmd: engine.CommandPush}.Validate(), ShouldBeNil)
		})
	})
}
