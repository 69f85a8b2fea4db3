package engine

import (
	"testing"

	"racesim/catalog"

	. "github.com/smartystreets/goconvey/convey"
)

func testTrack() catalog.Track {
	return catalog.Track{
		ID:                  "test_track",
		Name:                "Test Track",
		SectorLengthsMeters: [3]float64{1500, 1500, 2000},
		PitLossSeconds:      22,
		BaseIncidentRate:    0.02,
		DRSZones:            1,
		Abrasion:            0.5,
		Downforce:           0.5,
		OvertakeDifficulty:  0.3,
	}
}

func testCompounds() []catalog.Compound {
	return []catalog.Compound{
		{Name: "SOFT", BasePaceOffset: 0.02, WearPerLap: 0.04, WearExponent: 2, MinStintLaps: 5},
		{Name: "MEDIUM", BasePaceOffset: 0.0, WearPerLap: 0.025, WearExponent: 2, MinStintLaps: 12},
		{Name: "HARD", BasePaceOffset: -0.015, WearPerLap: 0.015, WearExponent: 2, MinStintLaps: 20},
	}
}

func testDrivers() map[string]catalog.Driver {
	return map[string]catalog.Driver{
		"AAA": {Code: "AAA", Name: "Driver A", Team: "Team A", Skill: 1.02, Aggression: 0.7, TireManagement: 0.8, WetMultiplier: 1.0},
		"BBB": {Code: "BBB", Name: "Driver B", Team: "Team B", Skill: 1.0, Aggression: 0.6, TireManagement: 0.7, WetMultiplier: 1.0},
	}
}

func testScenario() catalog.Scenario {
	return catalog.Scenario{
		ID:      "test_scenario",
		Name:    "Test Scenario",
		TrackID: "test_track",
		Laps:    5,
		Grid: []catalog.GridSlot{
			{DriverCode: "AAA", StartPosition: 1, StartCompound: "MEDIUM"},
			{DriverCode: "BBB", StartPosition: 2, StartCompound: "MEDIUM"},
		},
		WeatherProfile: catalog.WeatherProfile{Initial: "DRY", RainProbability: 0.05, TrackTemp: 28},
	}
}

func newTestContext() RaceContext {
	order := []string{"HARD", "MEDIUM", "SOFT"}
	return NewRaceContext(testTrack(), testCompounds(), order)
}

func runN(state *RaceState, ctx RaceContext, ticks int, seed uint64) (*RaceState, error) {
	rng := NewRand(seed)
	var err error
	for i := 0; i < ticks; i++ {
		state, _, err = Tick(state, ctx, Controls{Macros: DefaultMacros()}, rng)
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}

func TestTickDeterminism(t *testing.T) {
	Convey("Given an identical seed and command trace", t, func() {
		ctx := newTestContext()
		scenario := testScenario()
		track := testTrack()
		drivers := testDrivers()

		runOnce := func() *RaceState {
			state := NewRaceState(42, scenario, track, drivers)
			result, err := runN(state, ctx, 50, 42)
			So(err, ShouldBeNil)
			return result
		}

		Convey("two independent runs produce byte-identical results", func() {
			a := runOnce()
			b := runOnce()

			So(a.Meta.Tick, ShouldEqual, b.Meta.Tick)
			So(len(a.Cars), ShouldEqual, len(b.Cars))
			for i := range a.Cars {
				So(a.Cars[i].LapProgress, ShouldEqual, b.Cars[i].LapProgress)
				So(a.Cars[i].Position, ShouldEqual, b.Cars[i].Position)
				So(a.Cars[i].Tire.Wear, ShouldEqual, b.Cars[i].Tire.Wear)
			}
		})
	})
}

func TestTickNeverPanicsOrGoesNegative(t *testing.T) {
	Convey("Given a race run for many ticks", t, func() {
		ctx := newTestContext()
		scenario := testScenario()
		track := testTrack()
		drivers := testDrivers()
		state := NewRaceState(7, scenario, track, drivers)

		result, err := runN(state, ctx, 2000, 7)

		Convey("it completes without an invariant violation", func() {
			So(err, ShouldBeNil)
			for i := range result.Cars {
				So(result.Cars[i].FuelKg, ShouldBeGreaterThanOrEqualTo, 0)
				So(result.Cars[i].Tire.Wear, ShouldBeBetweenOrEqual, 0, 1.0)
			}
		})
	})
}

func TestDRSForbiddenOutsideGreen(t *testing.T) {
	Convey("Given a car with DRS available and a non-green flag", t, func() {
		car := &Car{
			CarIdentity:  CarIdentity{BaseSkill: 1, TrackAffinity: 1, WetMultiplier: 1},
			CarTelemetry: CarTelemetry{Tire: TireState{Compound: "MEDIUM"}},
			CarSystems:   CarSystems{DRSActive: true},
			CarTiming:    CarTiming{IntervalToAhead: 0.4},
		}
		compound := catalog.Compound{}
		track := testTrack()

		Convey("drsFactor yields no boost under any non-GREEN state", func() {
			for _, rc := range []RaceControlState{Yellow, VSC, SafetyCar, RedFlag} {
				paceWithDRS := effectivePace(car, track, compound, Dry, rc, 0.4)
				car.DRSActive = false
				paceWithout := effectivePace(car, track, compound, Dry, rc, 0.4)
				So(paceWithDRS, ShouldEqual, paceWithout)
				car.DRSActive = true
			}
		})
	})
}

func TestSafetyCarMinimumDwell(t *testing.T) {
	Convey("Given a safety car deployed on lap 1", t, func() {
		ctx := newTestContext()
		scenario := testScenario()
		track := testTrack()
		drivers := testDrivers()
		state := NewRaceState(1, scenario, track, drivers)
		rng := NewRand(1)

		state, _, err := Tick(state, ctx, Controls{
			Macros:         DefaultMacros(),
			DirectorEvents: []DirectorEvent{{Type: InjectSafetyCar}},
		}, rng)
		So(err, ShouldBeNil)
		So(state.RaceControl, ShouldEqual, SafetyCar)

		Convey("an immediate request to clear it is refused", func() {
			state, _, err = Tick(state, ctx, Controls{
				Macros:         DefaultMacros(),
				DirectorEvents: []DirectorEvent{{Type: InjectGreen}},
			}, rng)
			So(err, ShouldBeNil)
			So(state.RaceControl, ShouldEqual, SafetyCar)
		})
	})
}
