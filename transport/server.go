// Package transport is the externalmost layer: REST endpoints over the
// catalog and predictor, and one live-session websocket stream per
// scheduler.Session. It owns no simulation logic of its own.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"racesim/catalog"
	"racesim/engine"
	"racesim/predictor"
	"racesim/scheduler"
	"racesim/transport/fastview"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultEnsembleSize is how many members a /predict call runs when the
// request doesn't specify one.
const DefaultEnsembleSize = 200

// Server serves the catalog, predictor, and scheduler over HTTP and
// websocket. Each live race gets its own scheduler.Session, addressed by a
// generated session id. A session streams to one viewer at a time through
// a single-slot channel; a second connection is not refused, it competes
// with the first for that channel (see serveWebsocket).
type Server struct {
	addr    string
	catalog *catalog.Catalog
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*scheduler.Session
}

// NewServer wires the catalog into a router and returns a Server ready to
// Serve.
func NewServer(addr string, cat *catalog.Catalog) *Server {
	return &Server{
		addr:     addr,
		catalog:  cat,
		logger:   log.With().Str("component", "transport").Logger(),
		sessions: make(map[string]*scheduler.Session),
	}
}

// Router builds the REST and websocket route table. Split out from Serve
// so tests can drive the handlers through httptest without binding a
// socket.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/tracks", s.listTracks).Methods(http.MethodGet)
	router.HandleFunc("/tracks/{id}", s.getTrack).Methods(http.MethodGet)
	router.HandleFunc("/drivers", s.listDrivers).Methods(http.MethodGet)
	router.HandleFunc("/scenarios", s.listScenarios).Methods(http.MethodGet)
	router.HandleFunc("/scenarios/{id}", s.getScenario).Methods(http.MethodGet)
	router.HandleFunc("/scenarios/{id}/run", s.runScenario).Methods(http.MethodPost)
	router.HandleFunc("/scenarios/{id}/start", s.startScenario).Methods(http.MethodPost)
	router.HandleFunc("/predict", s.predict).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/commands", s.submitCommand).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/state", s.sessionState).Methods(http.MethodGet)
	router.HandleFunc("/ws/{id}", s.serveWebsocket).Methods(http.MethodGet)
	return router
}

// Serve blocks, serving the REST and websocket surface until the process
// is signaled to stop or ListenAndServe fails.
func (s *Server) Serve() error {
	s.logger.Info().Str("addr", s.addr).Msg("listening")
	if err := http.ListenAndServe(s.addr, s.Router()); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.ListTracks())
}

func (s *Server) getTrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	track, err := s.catalog.GetTrack(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (s *Server) listDrivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.ListDrivers())
}

func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.ListScenarios())
}

func (s *Server) getScenario(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	scenario, err := s.catalog.GetScenario(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

type runScenarioResponse struct {
	SessionID string `json:"session_id"`
}

// startScenario starts a new live session for the named scenario and
// returns its id; the caller then connects to /ws/{id} to stream it and
// POSTs to /sessions/{id}/commands to control it.
func (s *Server) startScenario(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	scenario, err := s.catalog.GetScenario(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var body struct {
		Seed uint64 `json:"seed"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	raceCtx, track, drivers, err := s.resolveScenario(scenario)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	session := scheduler.NewSession(body.Seed, scenario, track, drivers, raceCtx)
	sessionID := uuid.NewString()

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	// The session outlives this request, so it must not run under
	// r.Context(), which is cancelled as soon as the handler returns.
	go func() {
		if err := session.Run(context.Background()); err != nil {
			s.logger.Error().Err(err).Str("session", sessionID).Msg("session ended")
		}
	}()

	writeJSON(w, http.StatusCreated, runScenarioResponse{SessionID: sessionID})
}

// maxRunTicksPerLap safety-bounds a synchronous scenario_run: a
// race_control stuck at RED_FLAG holds pace at zero indefinitely, so this
// cap guarantees the handler always returns even under a pathological
// modifier combination.
const maxRunTicksPerLap = 20000

// classificationEntry is one car's final standing in a scenario_run result.
type classificationEntry struct {
	Position    int     `json:"position"`
	Driver      string  `json:"driver"`
	Team        string  `json:"team"`
	Status      string  `json:"status"`
	Laps        int     `json:"laps"`
	GapToLeader float64 `json:"gap_to_leader"`
}

// driverStrategySummary is one car's strategic record over the whole run.
type driverStrategySummary struct {
	Driver        string `json:"driver"`
	StartCompound string `json:"start_compound"`
	FinalCompound string `json:"final_compound"`
	PitStops      int    `json:"pit_stops"`
}

// scenarioRunResult is the full batch outcome of running a scenario to
// completion: the final classification, the race's key events, the
// fastest lap of the race, and a per-driver strategy summary.
type scenarioRunResult struct {
	ScenarioID       string                  `json:"scenario_id"`
	Ticks            uint64                  `json:"ticks"`
	Classification   []classificationEntry   `json:"classification"`
	KeyEvents        []engine.Event          `json:"key_events"`
	FastestLapTime   float64                 `json:"fastest_lap_time,omitempty"`
	FastestLapDriver string                  `json:"fastest_lap_driver,omitempty"`
	Strategy         []driverStrategySummary `json:"strategy"`
}

// keyEventTypes are the event kinds surfaced in a scenario_run result;
// per-tick noise like DRS_ENABLED and MODE_CHANGE is omitted.
var keyEventTypes = map[engine.EventType]bool{
	engine.EventRaceStart:         true,
	engine.EventOvertake:          true,
	engine.EventPitStop:           true,
	engine.EventSafetyCarDeployed: true,
	engine.EventSafetyCarEnding:   true,
	engine.EventVSCDeployed:       true,
	engine.EventVSCEnding:         true,
	engine.EventRedFlag:           true,
	engine.EventDNF:               true,
	engine.EventFastestLap:        true,
	engine.EventWeatherChange:     true,
}

// runScenario runs scenario_run synchronously: it drives the scenario to
// completion (or to the safety cap) on the request's own goroutine and
// returns the final classification, key events, fastest lap, and a
// per-driver strategy summary. It starts no live session and keeps no
// state after responding.
func (s *Server) runScenario(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	scenario, err := s.catalog.GetScenario(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var body struct {
		Seed   uint64        `json:"seed"`
		Macros engine.Macros `json:"macros"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Macros == (engine.Macros{}) {
		body.Macros = engine.DefaultMacros()
	}

	raceCtx, track, drivers, err := s.resolveScenario(scenario)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	startCompound := make(map[string]string, len(scenario.Grid))
	for _, slot := range scenario.Grid {
		startCompound[slot.DriverCode] = slot.StartCompound
	}

	state := engine.NewRaceState(body.Seed, scenario, track, drivers)
	rng := engine.NewRand(body.Seed)
	controls := engine.Controls{Macros: body.Macros}

	var keyEvents []engine.Event
	maxTicks := scenario.Laps * maxRunTicksPerLap
	for i := 0; i < maxTicks && !state.IsFinished; i++ {
		next, events, err := engine.Tick(state, raceCtx, controls, rng)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		state = next
		for _, ev := range events {
			if keyEventTypes[ev.Type] {
				keyEvents = append(keyEvents, ev)
			}
		}
	}

	classification := make([]classificationEntry, 0, len(state.Cars))
	strategy := make([]driverStrategySummary, 0, len(state.Cars))
	for i := range state.Cars {
		car := &state.Cars[i]
		classification = append(classification, classificationEntry{
			Position:    car.Position,
			Driver:      car.DriverCode,
			Team:        car.Team,
			Status:      string(car.Status),
			Laps:        car.Lap,
			GapToLeader: car.GapToLeader,
		})
		strategy = append(strategy, driverStrategySummary{
			Driver:        car.DriverCode,
			StartCompound: startCompound[car.DriverCode],
			FinalCompound: car.Tire.Compound,
			PitStops:      car.PitStops,
		})
	}
	sort.Slice(classification, func(a, b int) bool {
		return classificationPositionLess(classification[a], classification[b])
	})

	writeJSON(w, http.StatusOK, scenarioRunResult{
		ScenarioID:       scenario.ID,
		Ticks:            state.Meta.Tick,
		Classification:   classification,
		KeyEvents:        keyEvents,
		FastestLapTime:   state.Stats.FastestLapTime,
		FastestLapDriver: state.Stats.FastestLapDriver,
		Strategy:         strategy,
	})
}

// classificationPositionLess orders entries by position, with any entry
// that has no position (Position == 0) last. Classification gives DNF cars
// positions after every running car, so they sort last by position.
func classificationPositionLess(a, b classificationEntry) bool {
	if a.Position == 0 && b.Position == 0 {
		return a.Driver < b.Driver
	}
	if a.Position == 0 {
		return false
	}
	if b.Position == 0 {
		return true
	}
	return a.Position < b.Position
}

func (s *Server) sessionState(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown session"))
		return
	}
	writeJSON(w, http.StatusOK, session.State())
}

func (s *Server) submitCommand(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown session"))
		return
	}

	var cmd scheduler.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := session.Submit(cmd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// serveWebsocket upgrades the connection and streams the session's
// snapshots to it until the viewer disconnects. A second connection to the
// same session is not refused: it gets its own client loop racing the
// first for whatever is in the single-slot channel, which in practice
// starves out whichever one reads slower.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	cli, err := fastview.NewClient(session.Snapshots(), w, r)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	if err := cli.Sync(); err != nil {
		s.logger.Debug().Err(err).Msg("viewer session ended")
	}
}

type predictRequest struct {
	ScenarioID string        `json:"scenario_id"`
	BaseSeed   uint64        `json:"base_seed"`
	Members    int           `json:"members"`
	Macros     engine.Macros `json:"macros"`
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Members <= 0 {
		req.Members = DefaultEnsembleSize
	}
	if req.Macros == (engine.Macros{}) {
		req.Macros = engine.DefaultMacros()
	}

	scenario, err := s.catalog.GetScenario(req.ScenarioID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	raceCtx, track, drivers, err := s.resolveScenario(scenario)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	result, err := predictor.Predict(r.Context(), predictor.Request{
		Scenario: scenario,
		Track:    track,
		Drivers:  drivers,
		RaceCtx:  raceCtx,
		BaseSeed: req.BaseSeed,
		Members:  req.Members,
		Macros:   req.Macros,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolveScenario assembles everything a scenario needs to run: its
// track, the driver catalog records for every grid slot, and a
// RaceContext bundling the track with the full compound catalog.
func (s *Server) resolveScenario(scenario catalog.Scenario) (engine.RaceContext, catalog.Track, map[string]catalog.Driver, error) {
	track, err := s.catalog.GetTrack(scenario.TrackID)
	if err != nil {
		return engine.RaceContext{}, catalog.Track{}, nil, err
	}

	drivers := make(map[string]catalog.Driver, len(scenario.Grid))
	for _, slot := range scenario.Grid {
		d, err := s.catalog.GetDriver(slot.DriverCode)
		if err != nil {
			return engine.RaceContext{}, catalog.Track{}, nil, err
		}
		drivers[slot.DriverCode] = d
	}

	order := s.catalog.CompoundNamesByMinStint()
	compounds := make([]catalog.Compound, 0, len(order))
	for _, name := range order {
		c, err := s.catalog.GetCompound(name)
		if err != nil {
			continue
		}
		compounds = append(compounds, c)
	}

	return engine.NewRaceContext(track, compounds, order), track, drivers, nil
}

func (s *Server) session(id string) (*scheduler.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
