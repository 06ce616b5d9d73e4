package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterstat/internal/models"
	"github.com/woozymasta/masterstat/internal/report"
	"github.com/woozymasta/masterstat/internal/vars"
)

// handleServers runs a live aggregate query and returns the report.
// Query params: ?master=host:port (repeatable), raw=1, country=1
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	masters := q["master"]
	if len(masters) > maxMasterOverrides {
		http.Error(w, "Too many masters", http.StatusBadRequest)
		return
	}

	// arbitrary targets only with the admin token
	if !validToken(r, s.authToken) {
		for _, m := range masters {
			if _, ok := s.configured[m]; !ok {
				log.Debug().Str("master", m).Msg("Rejected unknown master override")
				http.Error(w, "Master not allowed", http.StatusForbidden)
				return
			}
		}
	}

	if len(masters) == 0 {
		masters = s.masters
	}

	agg, err := s.client.QueryMany(masters)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var geo report.CountryLookup
	if q.Get("country") == "1" {
		geo = s.geoip
	}

	status := http.StatusOK
	if agg.Succeeded() == 0 {
		status = http.StatusBadGateway
	}

	writeJSON(w, status, report.Build(agg, q.Get("raw") == "1", geo))
}

// handleHealth returns build info.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Info())
}

// handleRuns lists stored runs, newest first.
// Query params: ?limit=50
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.storage.ListRuns(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch runs")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	if runs == nil {
		runs = []models.Run{}
	}

	writeJSON(w, http.StatusOK, runs)
}

// handleLatestRun returns the newest run with masters and servers.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.LatestRun()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch latest run")
		http.Error(w, "Database Error", http.StatusInternalServerError)
		return
	}

	if run == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
