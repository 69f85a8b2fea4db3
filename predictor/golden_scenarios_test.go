package predictor

import (
	"context"
	"sort"
	"testing"

	"racesim/catalog"
	"racesim/engine"

	. "github.com/smartystreets/goconvey/convey"
)

func loadGoldenCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load("../catalog/data")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func requestFor(t *testing.T, cat *catalog.Catalog, scenarioID string, baseSeed uint64, members int, macros engine.Macros) Request {
	t.Helper()
	scenario, err := cat.GetScenario(scenarioID)
	if err != nil {
		t.Fatalf("get scenario %q: %v", scenarioID, err)
	}
	track, err := cat.GetTrack(scenario.TrackID)
	if err != nil {
		t.Fatalf("get track %q: %v", scenario.TrackID, err)
	}
	order := cat.CompoundNamesByMinStint()
	compounds := make([]catalog.Compound, 0, len(order))
	for _, name := range order {
		c, err := cat.GetCompound(name)
		if err != nil {
			t.Fatalf("get compound %q: %v", name, err)
		}
		compounds = append(compounds, c)
	}
	drivers := make(map[string]catalog.Driver, len(scenario.Grid))
	for _, slot := range scenario.Grid {
		d, err := cat.GetDriver(slot.DriverCode)
		if err != nil {
			t.Fatalf("get driver %q: %v", slot.DriverCode, err)
		}
		drivers[slot.DriverCode] = d
	}

	return Request{
		Scenario: scenario,
		Track:    track,
		Drivers:  drivers,
		RaceCtx:  engine.NewRaceContext(track, compounds, order),
		BaseSeed: baseSeed,
		Members:  members,
		Macros:   macros,
	}
}

func TestGoldenPredictorConsistency(t *testing.T) {
	Convey("Scenario 5: monaco_start, two Predict calls at fixed N", t, func() {
		cat := loadGoldenCatalog(t)
		req := requestFor(t, cat, "monaco_start", 2024, 12, engine.DefaultMacros())

		a, errA := Predict(context.Background(), req)
		b, errB := Predict(context.Background(), req)
		So(errA, ShouldBeNil)
		So(errB, ShouldBeNil)

		Convey("win probabilities match to 1e-9", func() {
			So(len(a.Drivers), ShouldEqual, len(b.Drivers))
			for i := range a.Drivers {
				So(a.Drivers[i].Driver, ShouldEqual, b.Drivers[i].Driver)
				So(a.Drivers[i].WinProbability, ShouldAlmostEqual, b.Drivers[i].WinProbability, 1e-9)
			}
			So(a.Confidence, ShouldAlmostEqual, b.Confidence, 1e-9)
		})
	})
}

// safetyCarEventCount runs one full race and returns how many times race
// control deployed the safety car, independent of Predict's aggregation
// (which never surfaces per-member event counts).
func safetyCarEventCount(req Request, seed uint64) int {
	state := engine.NewRaceState(seed, req.Scenario, req.Track, req.Drivers)
	controls := engine.Controls{Macros: req.Macros}
	rng := engine.NewRand(seed)
	count := 0
	maxTicks := req.Scenario.Laps * maxTicksPerLap
	for i := 0; i < maxTicks && !state.IsFinished; i++ {
		next, events, err := engine.Tick(state, req.RaceCtx, controls, rng)
		if err != nil {
			break
		}
		state = next
		for _, ev := range events {
			if ev.Type == engine.EventSafetyCarDeployed {
				count++
			}
		}
	}
	return count
}

func median(xs []int) float64 {
	sorted := append([]int(nil), xs...)
	sort.Ints(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2.0
}

func TestGoldenModifierResponse(t *testing.T) {
	Convey("Scenario 6: spa_strategic, sc_prob 3.0 vs sc_prob 0.0", t, func() {
		cat := loadGoldenCatalog(t)
		const sampleMembers = 40

		highReq := requestFor(t, cat, "spa_strategic", 555, sampleMembers, engine.Macros{Aggression: 1.0, SCProbability: 3.0, TireDeg: 1.0})
		lowReq := requestFor(t, cat, "spa_strategic", 555, sampleMembers, engine.Macros{Aggression: 1.0, SCProbability: 0.0, TireDeg: 1.0})

		highCounts := make([]int, sampleMembers)
		lowCounts := make([]int, sampleMembers)
		for m := 0; m < sampleMembers; m++ {
			seed := highReq.BaseSeed ^ (uint64(m) * 0x9E3779B97F4A7C15)
			highCounts[m] = safetyCarEventCount(highReq, seed)
			lowCounts[m] = safetyCarEventCount(lowReq, seed)
		}

		Convey("a higher sc_prob modifier yields a larger median safety-car count", func() {
			So(median(highCounts), ShouldBeGreaterThan, median(lowCounts))
		})

		Convey("sc_prob 0.0 never triggers an incident-escalated safety car", func() {
			for _, c := range lowCounts {
				So(c, ShouldEqual, 0)
			}
		})
	})
}
