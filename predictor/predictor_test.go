package predictor

import (
	"context"
	"testing"

	"racesim/catalog"
	"racesim/engine"

	. "github.com/smartystreets/goconvey/convey"
)

func testRequest(members int) Request {
	track := catalog.Track{
		ID:                  "test_track",
		SectorLengthsMeters: [3]float64{1200, 1200, 1200},
		PitLossSeconds:      20,
		BaseIncidentRate:    0.01,
		Downforce:           0.4,
		OvertakeDifficulty:  0.3,
	}
	compounds := []catalog.Compound{
		{Name: "MEDIUM", WearPerLap: 0.02, MinStintLaps: 10},
		{Name: "HARD", WearPerLap: 0.01, MinStintLaps: 20},
	}
	scenario := catalog.Scenario{
		ID:      "test_scenario",
		TrackID: track.ID,
		Laps:    3,
		Grid: []catalog.GridSlot{
			{DriverCode: "AAA", StartPosition: 1, StartCompound: "MEDIUM"},
			{DriverCode: "BBB", StartPosition: 2, StartCompound: "MEDIUM"},
			{DriverCode: "CCC", StartPosition: 3, StartCompound: "MEDIUM"},
		},
		WeatherProfile: catalog.WeatherProfile{Initial: "DRY"},
	}
	drivers := map[string]catalog.Driver{
		"AAA": {Code: "AAA", Skill: 1.05, Aggression: 0.7, WetMultiplier: 1.0},
		"BBB": {Code: "BBB", Skill: 1.0, Aggression: 0.6, WetMultiplier: 1.0},
		"CCC": {Code: "CCC", Skill: 0.97, Aggression: 0.5, WetMultiplier: 1.0},
	}

	return Request{
		Scenario: scenario,
		Track:    track,
		Drivers:  drivers,
		RaceCtx:  engine.NewRaceContext(track, compounds, []string{"HARD", "MEDIUM"}),
		BaseSeed: 99,
		Members:  members,
		Macros:   engine.DefaultMacros(),
	}
}

func TestPredictProbabilitiesSumToOne(t *testing.T) {
	Convey("Given an ensemble prediction over three drivers", t, func() {
		result, err := Predict(context.Background(), testRequest(24))
		So(err, ShouldBeNil)

		Convey("win probabilities across the field sum to ~1", func() {
			sum := 0.0
			for _, d := range result.Drivers {
				sum += d.WinProbability
			}
			So(sum, ShouldAlmostEqual, 1.0, 0.01)
		})

		Convey("confidence is within [0, 1]", func() {
			So(result.Confidence, ShouldBeBetweenOrEqual, 0.0, 1.0)
		})

		Convey("the higher-skill driver wins more often than the lower-skill one", func() {
			byDriver := map[string]DriverOutcome{}
			for _, d := range result.Drivers {
				byDriver[d.Driver] = d
			}
			So(byDriver["AAA"].WinProbability, ShouldBeGreaterThanOrEqualTo, byDriver["CCC"].WinProbability)
		})
	})
}

func TestPredictIsStatelessAcrossCalls(t *testing.T) {
	Convey("Given two separate Predict calls with the same request", t, func() {
		req := testRequest(16)
		a, errA := Predict(context.Background(), req)
		b, errB := Predict(context.Background(), req)
		So(errA, ShouldBeNil)
		So(errB, ShouldBeNil)

		Convey("results are reproducible since member seeds derive only from BaseSeed", func() {
			So(a.Confidence, ShouldEqual, b.Confidence)
			for i := range a.Drivers {
				So(a.Drivers[i].WinProbability, ShouldEqual, b.Drivers[i].WinProbability)
			}
		})
	})
}
