package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/command"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/history"
)

// defaultHistoryLimit caps /api/recordings when no limit is given.
const defaultHistoryLimit = 50

// StartRequest is the body of POST /api/recording/start.
type StartRequest struct {
	OutputPath string `json:"output_path,omitempty"`
}

// StatusResponse is returned by the recording endpoints.
type StatusResponse struct {
	Recording bool             `json:"recording"`
	State     string           `json:"state"`
	Session   *SessionResponse `json:"session,omitempty"`
}

// SessionResponse describes the active recording.
type SessionResponse struct {
	ID             string  `json:"id"`
	OutputPath     string  `json:"output_path"`
	Pid            int     `json:"pid"`
	StartedAt      string  `json:"started_at"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`

	// Exited is set when the process ended on its own and the slot has
	// not been stopped yet.
	Exited   bool `json:"exited"`
	ExitCode *int `json:"exit_code,omitempty"`

	Frames    int64   `json:"frames"`
	FPS       float64 `json:"fps"`
	Speed     float64 `json:"speed"`
	SizeBytes int64   `json:"size_bytes"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Op    string `json:"op,omitempty"`
}

// RecordingsResponse is returned by GET /api/recordings.
type RecordingsResponse struct {
	Recordings []history.Recording `json:"recordings"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleStart handles POST /api/recording/start.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	if err := s.commands.StartRecording(r.Context(), req.OutputPath); err != nil {
		s.writeCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.snapshot())
}

// handleStop handles POST /api/recording/stop.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.commands.StopRecording(r.Context()); err != nil {
		s.writeCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.snapshot())
}

// handleStatus handles GET /api/recording/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.snapshot())
}

// handleRecordings handles GET /api/recordings?limit=N.
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history disabled", "")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}

	recs, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("history_list_failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list recordings", "")
		return
	}
	if recs == nil {
		recs = []history.Recording{}
	}
	respondJSON(w, http.StatusOK, RecordingsResponse{Recordings: recs})
}

// snapshot builds the status body. GetStatus is the authoritative flag;
// the detail comes from the supervisor snapshot.
func (s *Server) snapshot() StatusResponse {
	resp := StatusResponse{Recording: s.commands.GetStatus(), State: "idle"}
	if resp.Recording {
		resp.State = "recording"
	}
	if s.status == nil {
		return resp
	}

	st := s.status.Current()
	if st.Session == nil {
		return resp
	}

	sess := &SessionResponse{
		ID:             st.Session.ID,
		OutputPath:     st.Session.OutputPath,
		Pid:            st.Session.Pid,
		StartedAt:      st.Session.StartedAt.UTC().Format(time.RFC3339),
		ElapsedSeconds: time.Since(st.Session.StartedAt).Seconds(),
	}
	if st.Exited != nil {
		code := st.Exited.ExitCode
		sess.Exited = true
		sess.ExitCode = &code
	}
	if p := st.Progress; p != nil {
		sess.Frames = p.Frame
		sess.FPS = p.FPS
		sess.Speed = p.Speed
		sess.SizeBytes = p.TotalSize
	}
	resp.Session = sess
	return resp
}

func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	var cmdErr *command.Error
	if errors.As(err, &cmdErr) {
		s.writeError(w, http.StatusInternalServerError, cmdErr.Message, cmdErr.Op)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error(), "")
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message, op string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Op: op})
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
