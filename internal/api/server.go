package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/LdDl/headcount/internal/monitoring"
	"github.com/LdDl/headcount/internal/proof"
	"github.com/LdDl/headcount/internal/session"
	"github.com/LdDl/headcount/internal/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultTolerance = 1
	defaultListLimit = 20
	maxListLimit     = 500
)

// SessionFunc runs one fresh counting session
type SessionFunc func(ctx context.Context) (*session.Result, error)

// Ledger persists session summaries
type Ledger interface {
	Insert(ctx context.Context, record store.SessionRecord) error
	List(ctx context.Context, limit int) ([]store.SessionRecord, error)
}

// Server is HTTP surface of the counting service
type Server struct {
	run    SessionFunc
	proofs *proof.Writer
	ledger Ledger
	source string
	clock  session.Clock
}

// NewServer creates server. Ledger may be nil, then sessions are not persisted
func NewServer(run SessionFunc, proofs *proof.Writer, ledger Ledger, source string) *Server {
	return &Server{
		run:    run,
		proofs: proofs,
		ledger: ledger,
		source: source,
		clock:  time.Now,
	}
}

// ProcessResponse is returned by POST /process_video
type ProcessResponse struct {
	Decision    *Decision `json:"decision"`
	ProofURL    *string   `json:"proof_url"`
	RobustCount int       `json:"robust_count"`
	SessionID   string    `json:"session_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns routes of the service
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process_video", s.processVideo)
	mux.HandleFunc("GET /proof/{name}", s.serveProof)
	mux.HandleFunc("GET /sessions", s.listSessions)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (s *Server) processVideo(w http.ResponseWriter, r *http.Request) {
	reference, err := optionalInt(r, "reference_count", "faculty_count")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	tolerance := defaultTolerance
	if value, err := optionalInt(r, "tolerance"); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	} else if value != nil {
		tolerance = *value
	}
	if tolerance < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tolerance must be >= 0"})
		return
	}

	result, err := s.run(r.Context())
	if err != nil {
		monitoring.Logger.WithError(err).Error("session failed")
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrSourceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	response := ProcessResponse{
		RobustCount: result.RobustCount,
		SessionID:   result.SessionID.String(),
	}
	if result.ProofImage != nil && result.ProofRecord != nil {
		if _, err := s.proofs.Write(result.ProofImage, result.ProofRecord); err != nil {
			monitoring.Logger.WithError(err).WithField("session_id", response.SessionID).Error("can't store proof")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "can't store proof"})
			return
		}
		proofURL := "/proof/" + result.ProofRecord.ProofImageName
		response.ProofURL = &proofURL
	}
	if reference != nil {
		decision := Decide(result.RobustCount, *reference, tolerance)
		response.Decision = &decision
	}

	if s.ledger != nil {
		record := store.NewSessionRecord(result, s.source, s.clock())
		record.ReferenceCount = reference
		if response.Decision != nil {
			record.Decision = string(*response.Decision)
		}
		if err := s.ledger.Insert(r.Context(), record); err != nil {
			// Counting succeeded, ledger is auxiliary
			monitoring.Logger.WithError(err).WithField("session_id", response.SessionID).Warn("can't persist session")
		}
	}

	fields := logrus.Fields{
		"session_id":   response.SessionID,
		"robust_count": response.RobustCount,
		"tolerance":    tolerance,
	}
	if response.Decision != nil {
		fields["reference_count"] = *reference
		fields["decision"] = *response.Decision
	}
	monitoring.Logger.WithFields(fields).Info("video processed")
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) serveProof(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	switch filepath.Ext(name) {
	case ".png", ".json":
	default:
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.proofs.Dir(), name))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if value, err := optionalInt(r, "limit"); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	} else if value != nil {
		limit = *value
	}
	if limit < 1 || limit > maxListLimit {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be in [1, " + strconv.Itoa(maxListLimit) + "]"})
		return
	}
	if s.ledger == nil {
		writeJSON(w, http.StatusOK, []store.SessionRecord{})
		return
	}
	records, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		monitoring.Logger.WithError(err).Error("can't list sessions")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "can't list sessions"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// optionalInt reads first non-empty form value among names. Nil when none is set
func optionalInt(r *http.Request, names ...string) (*int, error) {
	for _, name := range names {
		raw := strings.TrimSpace(r.FormValue(name))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Errorf("%s must be an integer, got %q", name, raw)
		}
		return &value, nil
	}
	return nil, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		monitoring.Logger.WithError(err).Warn("can't write response")
	}
}
