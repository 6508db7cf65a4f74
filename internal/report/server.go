package report

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/yethikrishna/levelcode-sub001/internal/logging"
)

var log = logging.New("report")

// Server serves team status/report over HTTP.
type Server struct {
	reporter *Reporter
	router   *mux.Router
}

// NewServer builds a Server with routes registered.
func NewServer(reporter *Reporter) *Server {
	s := &Server{reporter: reporter, router: mux.NewRouter()}
	s.router.HandleFunc("/teams", s.handleListTeams).Methods(http.MethodGet)
	s.router.HandleFunc("/teams/{name}/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/teams/{name}/report", s.handleReport).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler, delegating to the mux router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	names, err := s.reporter.ListTeams()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"teams": names})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	rep, err := s.reporter.BuildReport(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, errNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, rep.Stats)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	rep, err := s.reporter.BuildReport(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, errNotFound(name))
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(RenderText(rep)))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write json response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Warn("http handler error", "status", status, "err", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type notFoundError struct{ team string }

func (e *notFoundError) Error() string { return "team \"" + e.team + "\" not found" }

func errNotFound(team string) error { return &notFoundError{team: team} }
