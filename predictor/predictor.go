// Package predictor runs a stateless Monte Carlo ensemble: many
// independent full-race simulations from the same starting grid, each
// seeded independently, aggregated into finish-probability estimates. It
// holds no state across calls; every Predict call is a fresh ensemble.
package predictor

import (
	"context"
	"math"
	"runtime"
	"sort"

	"racesim/catalog"
	"racesim/engine"
	"racesim/xsync"

	"golang.org/x/sync/errgroup"
)

// podiumCutoff and pointsCutoff define which finishing positions count as
// a podium or a points finish, for the aggregate probabilities.
const (
	podiumCutoff = 3
	pointsCutoff = 10
)

// pointsTable mirrors a standard top-10 scoring scale; mean points per
// driver gives a single comparable number on top of the raw probabilities.
var pointsTable = [pointsCutoff]float64{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}

// maxTicksPerLap safety-bounds a single ensemble member's simulation loop.
// A race_control stuck at RED_FLAG holds pace at zero indefinitely; this
// cap guarantees Predict always terminates even if a pathological
// modifier combination prevents the race from ever finishing naturally.
const maxTicksPerLap = 20000

// DriverOutcome is one driver's aggregated result across the ensemble.
type DriverOutcome struct {
	Driver              string          `json:"driver"`
	WinProbability      float64         `json:"win_probability"`
	PodiumProbability   float64         `json:"podium_probability"`
	PointsProbability   float64         `json:"points_probability"`
	MeanPoints          float64         `json:"mean_points"`
	FinishDistribution  map[int]float64 `json:"finish_distribution"`
}

// Result is a completed ensemble's aggregate output.
type Result struct {
	ScenarioID string          `json:"scenario_id"`
	Members    int             `json:"members"`
	Confidence float64         `json:"confidence"`
	Drivers    []DriverOutcome `json:"drivers"`
}

// Request bundles everything one Predict call needs: the scenario already
// resolved to a concrete track and driver set, a base seed to derive
// independent member streams from, the ensemble size, and the macro
// modifiers every member runs under.
type Request struct {
	Scenario catalog.Scenario
	Track    catalog.Track
	Drivers  map[string]catalog.Driver
	RaceCtx  engine.RaceContext
	BaseSeed uint64
	Members  int
	Macros   engine.Macros
}

type memberResult struct {
	finishPosition map[string]int
}

// Predict runs Request.Members independent full-race simulations and
// returns the aggregated finishing statistics. It is stateless: nothing
// persists on the Package between calls, and every member's RNG stream is
// derived independently from BaseSeed so members never share state or
// interfere with each other when run concurrently.
func Predict(ctx context.Context, req Request) (*Result, error) {
	driverCodes := make([]string, 0, len(req.Scenario.Grid))
	for _, slot := range req.Scenario.Grid {
		driverCodes = append(driverCodes, slot.DriverCode)
	}
	sort.Strings(driverCodes)

	wins := make(map[string]*xsync.AtomicInt64, len(driverCodes))
	podiums := make(map[string]*xsync.AtomicInt64, len(driverCodes))
	points := make(map[string]*xsync.AtomicInt64, len(driverCodes))
	pointsSum := make(map[string]*xsync.AtomicFloat64, len(driverCodes))
	finishCounts := make(map[string]map[int]*xsync.AtomicInt64, len(driverCodes))
	for _, code := range driverCodes {
		wins[code] = xsync.NewAtomicInt64(0)
		podiums[code] = xsync.NewAtomicInt64(0)
		points[code] = xsync.NewAtomicInt64(0)
		pointsSum[code] = xsync.NewAtomicFloat64(0)
		byPos := make(map[int]*xsync.AtomicInt64, len(driverCodes))
		for pos := 1; pos <= len(driverCodes); pos++ {
			byPos[pos] = xsync.NewAtomicInt64(0)
		}
		finishCounts[code] = byPos
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, runtime.GOMAXPROCS(0)))

	for m := 0; m < req.Members; m++ {
		salt := uint64(m) * 0x9E3779B97F4A7C15
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}

			seed := req.BaseSeed ^ salt
			rng := engine.NewRand(seed)
			result := simulateOneMember(req, seed, rng)

			for _, code := range driverCodes {
				pos, ok := result.finishPosition[code]
				if !ok {
					continue
				}
				if pos == 1 {
					wins[code].Incr()
				}
				if pos <= podiumCutoff {
					podiums[code].Incr()
				}
				if pos <= pointsCutoff {
					points[code].Incr()
					for {
						if _, ok := pointsSum[code].AtomicAdd(pointsTable[pos-1]); ok {
							break
						}
					}
				}
				if byPos, ok := finishCounts[code][pos]; ok {
					byPos.Incr()
				}
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	members := float64(req.Members)
	outcomes := make([]DriverOutcome, 0, len(driverCodes))
	winProbs := make([]float64, 0, len(driverCodes))
	for _, code := range driverCodes {
		dist := make(map[int]float64, len(driverCodes))
		for pos, counter := range finishCounts[code] {
			if c := counter.Read(); c > 0 {
				dist[pos] = float64(c) / members
			}
		}
		winProb := float64(wins[code].Read()) / members
		winProbs = append(winProbs, winProb)
		outcomes = append(outcomes, DriverOutcome{
			Driver:              code,
			WinProbability:      winProb,
			PodiumProbability:   float64(podiums[code].Read()) / members,
			PointsProbability:   float64(points[code].Read()) / members,
			MeanPoints:          pointsSum[code].AtomicRead() / members,
			FinishDistribution:  dist,
		})
	}

	return &Result{
		ScenarioID: req.Scenario.ID,
		Members:    req.Members,
		Confidence: confidence(winProbs),
		Drivers:    outcomes,
	}, nil
}

// simulateOneMember runs one independent full race to completion (or to
// the safety cap) and returns each car's final classified position.
func simulateOneMember(req Request, seed uint64, rng *engine.Rand) memberResult {
	state := engine.NewRaceState(seed, req.Scenario, req.Track, req.Drivers)
	controls := engine.Controls{Macros: req.Macros}

	maxTicks := req.Scenario.Laps * maxTicksPerLap
	for i := 0; i < maxTicks && !state.IsFinished; i++ {
		next, _, err := engine.Tick(state, req.RaceCtx, controls, rng)
		if err != nil {
			break
		}
		state = next
	}

	positions := make(map[string]int, len(state.Cars))
	for i := range state.Cars {
		positions[state.Cars[i].DriverCode] = state.Cars[i].Position
	}
	return memberResult{finishPosition: positions}
}

// confidence implements clamp01(mean_top1_probability * member_agreement),
// where member_agreement is 1 minus the normalized Shannon entropy of the
// aggregate win-probability distribution: a field where one driver wins
// almost every member run has near-zero entropy and high agreement, while
// a field where wins are spread evenly has entropy near its maximum and
// low agreement.
func confidence(winProbs []float64) float64 {
	if len(winProbs) == 0 {
		return 0
	}

	top1 := 0.0
	entropy := 0.0
	for _, p := range winProbs {
		if p > top1 {
			top1 = p
		}
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}

	maxEntropy := math.Log(float64(len(winProbs)))
	normalizedEntropy := 0.0
	if maxEntropy > 0 {
		normalizedEntropy = entropy / maxEntropy
	}
	agreement := 1.0 - normalizedEntropy

	c := top1 * agreement
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
