package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"racesim/catalog"

	. "github.com/smartystreets/goconvey/convey"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load("../catalog/data")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func TestServerCatalogEndpoints(t *testing.T) {
	Convey("Given a server backed by the bundled catalog", t, func() {
		srv := NewServer(":0", testCatalog(t))
		ts := httptest.NewServer(srv.Router())
		defer ts.Close()

		Convey("GET /tracks lists every bundled track", func() {
			resp, err := http.Get(ts.URL + "/tracks")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var tracks []catalog.TrackSummary
			So(json.NewDecoder(resp.Body).Decode(&tracks), ShouldBeNil)
			So(len(tracks), ShouldBeGreaterThan, 0)
		})

		Convey("GET /tracks/{id} for an unknown track is a 404", func() {
			resp, err := http.Get(ts.URL + "/tracks/not_a_real_track")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("GET /scenarios/{id} returns a known scenario", func() {
			resp, err := http.Get(ts.URL + "/scenarios/monza_sprint")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var scenario catalog.Scenario
			So(json.NewDecoder(resp.Body).Decode(&scenario), ShouldBeNil)
			So(scenario.ID, ShouldEqual, "monza_sprint")
		})
	})
}

func TestServerStartScenarioAndSessionLifecycle(t *testing.T) {
	Convey("Given a server backed by the bundled catalog", t, func() {
		srv := NewServer(":0", testCatalog(t))
		ts := httptest.NewServer(srv.Router())
		defer ts.Close()

		Convey("POST /scenarios/{id}/start starts a live session with a fresh id", func() {
			body, _ := json.Marshal(map[string]uint64{"seed": 11})
			resp, err := http.Post(ts.URL+"/scenarios/monza_sprint/start", "application/json", bytes.NewReader(body))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)

			var started runScenarioResponse
			So(json.NewDecoder(resp.Body).Decode(&started), ShouldBeNil)
			So(started.SessionID, ShouldNotBeEmpty)

			Convey("GET /sessions/{id}/state reflects the running session", func() {
				time.Sleep(50 * time.Millisecond)
				resp, err := http.Get(ts.URL + "/sessions/" + started.SessionID + "/state")
				So(err, ShouldBeNil)
				defer resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})

			Convey("POST /sessions/{id}/commands with an invalid command is rejected", func() {
				bad, _ := json.Marshal(map[string]string{"type": "NOT_A_COMMAND"})
				resp, err := http.Post(ts.URL+"/sessions/"+started.SessionID+"/commands", "application/json", bytes.NewReader(bad))
				So(err, ShouldBeNil)
				defer resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("GET /sessions/{id}/state for an unknown session is a 404", func() {
			resp, err := http.Get(ts.URL + "/sessions/does-not-exist/state")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServerRunScenarioSynchronous(t *testing.T) {
	Convey("Given a server backed by the bundled catalog", t, func() {
		srv := NewServer(":0", testCatalog(t))
		ts := httptest.NewServer(srv.Router())
		defer ts.Close()

		Convey("POST /scenarios/{id}/run runs monza_sprint to completion and returns its summary", func() {
			body, _ := json.Marshal(map[string]uint64{"seed": 11})
			resp, err := http.Post(ts.URL+"/scenarios/monza_sprint/run", "application/json", bytes.NewReader(body))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var result scenarioRunResult
			So(json.NewDecoder(resp.Body).Decode(&result), ShouldBeNil)
			So(result.ScenarioID, ShouldEqual, "monza_sprint")
			So(len(result.Classification), ShouldEqual, 10)
			So(len(result.Strategy), ShouldEqual, 10)

			positions := make(map[int]bool, len(result.Classification))
			for _, c := range result.Classification {
				if c.Position == 0 {
					continue
				}
				So(positions[c.Position], ShouldBeFalse)
				positions[c.Position] = true
			}
			So(positions[1], ShouldBeTrue)
		})

		Convey("POST /scenarios/{id}/run for an unknown scenario is a 404", func() {
			resp, err := http.Post(ts.URL+"/scenarios/not_a_scenario/run", "application/json", bytes.NewReader(nil))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServerPredict(t *testing.T) {
	Convey("Given a server backed by the bundled catalog", t, func() {
		srv := NewServer(":0", testCatalog(t))
		ts := httptest.NewServer(srv.Router())
		defer ts.Close()

		Convey("POST /predict runs a small ensemble and returns driver probabilities", func() {
			reqBody, _ := json.Marshal(map[string]interface{}{
				"scenario_id": "monaco_start",
				"base_seed":   7,
				"members":     8,
			})
			resp, err := http.Post(ts.URL+"/predict", "application/json", bytes.NewReader(reqBody))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var result struct {
				ScenarioID string `json:"scenario_id"`
				Members    int    `json:"members"`
				Drivers    []struct {
					Driver         string  `json:"driver"`
					WinProbability float64 `json:"win_probability"`
				} `json:"drivers"`
			}
			So(json.NewDecoder(resp.Body).Decode(&result), ShouldBeNil)
			So(result.ScenarioID, ShouldEqual, "monaco_start")
			So(result.Members, ShouldEqual, 8)
			So(len(result.Drivers), ShouldBeGreaterThan, 0)
		})

		Convey("POST /predict for an unknown scenario is a 404", func() {
			reqBody, _ := json.Marshal(map[string]interface{}{"scenario_id": "not_a_scenario"})
			resp, err := http.Post(ts.URL+"/predict", "application/json", bytes.NewReader(reqBody))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}
