package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/PabloGalante/quiet-room/internal/app/conversation"
	"github.com/PabloGalante/quiet-room/internal/app/protocol"
	"github.com/PabloGalante/quiet-room/internal/domain"
	"github.com/PabloGalante/quiet-room/internal/observability"
)

type Server struct {
	svc *conversation.Service
}

func NewServer(svc *conversation.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	// /credential → PUT: store key, DELETE: reset
	mux.HandleFunc("/credential", s.handleCredential)

	// /room         → GET: snapshot
	// /room/{action} → POST/PUT: lifecycle and turn actions
	mux.HandleFunc("/room", s.handleRoom)
	mux.HandleFunc("/room/", s.handleRoomAction)

	return chainMiddlewares(mux, withLogging, withCORS, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type credentialRequest struct {
	Key string `json:"key"`
}

type credentialResponse struct {
	Vendor string `json:"vendor"`
	Stored bool   `json:"stored"`
}

type profileRequest struct {
	Name      string   `json:"name"`
	Intention string   `json:"intention"`
	Moods     []string `json:"moods"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type signalRequest struct {
	Signal string `json:"signal"`
}

type documentRequest struct {
	Document string `json:"document"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Content   string    `json:"content"`
	HasShadow bool      `json:"has_shadow"`
	Shadow    string    `json:"shadow,omitempty"`
	Shared    bool      `json:"shared"`
	CreatedAt time.Time `json:"created_at"`
}

type profileResponse struct {
	Name      string   `json:"name"`
	Intention string   `json:"intention"`
	Moods     []string `json:"moods"`
}

type roomResponse struct {
	Status        string            `json:"status"`
	TurnOwner     string            `json:"turn_owner"`
	Atmosphere    string            `json:"atmosphere"`
	Document      string            `json:"document"`
	Profile       profileResponse   `json:"profile"`
	DeclineReason string            `json:"decline_reason,omitempty"`
	Messages      []messageResponse `json:"messages"`
}

type admissionResponse struct {
	Decision string       `json:"decision"`
	Message  string       `json:"message"`
	Soft     bool         `json:"soft,omitempty"`
	Room     roomResponse `json:"room"`
}

type turnResponse struct {
	Glimmer     bool         `json:"glimmer"`
	Ended       bool         `json:"ended"`
	Degraded    bool         `json:"degraded"`
	Interrupted bool         `json:"interrupted"`
	Room        roomResponse `json:"room"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /credential
func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleCredentialStatus(w, r)
	case http.MethodPut:
		s.handleSaveCredential(w, r)
	case http.MethodDelete:
		s.handleResetCredential(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /room
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.room())
	default:
		methodNotAllowed(w)
	}
}

// /room/{action}
func (s *Server) handleRoomAction(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/room/"), "/")

	type route struct {
		method  string
		handler http.HandlerFunc
	}
	routes := map[string]route{
		"begin":     {http.MethodPost, s.handleBegin},
		"profile":   {http.MethodPut, s.handleProfile},
		"orient":    {http.MethodPost, s.handleOrient},
		"messages":  {http.MethodPost, s.handleMessage},
		"signals":   {http.MethodPost, s.handleSignal},
		"document":  {http.MethodPut, s.handleDocument},
		"return":    {http.MethodPost, s.handleReturn},
		"force-end": {http.MethodPost, s.handleForceEnd},
	}

	rt, ok := routes[action]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != rt.method {
		methodNotAllowed(w)
		return
	}
	rt.handler(w, r)
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.HasCredential(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialResponse{Vendor: s.svc.Vendor(), Stored: ok})
}

func (s *Server) handleSaveCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := s.svc.SaveCredential(r.Context(), req.Key); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialResponse{Vendor: s.svc.Vendor(), Stored: true})
}

func (s *Server) handleResetCredential(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetCredential(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, credentialResponse{Vendor: s.svc.Vendor(), Stored: false})
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Begin(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.room())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	profile := domain.WitnessProfile{Name: req.Name, Intention: req.Intention, Moods: req.Moods}
	if err := s.svc.Calibrate(r.Context(), profile); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.room())
}

func (s *Server) handleOrient(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Orient(turnContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, admissionResponse{
		Decision: string(out.Decision),
		Message:  out.Message,
		Soft:     out.Soft,
		Room:     s.room(),
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	out, err := s.svc.Send(turnContext(r), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.turn(out))
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	sig, err := protocol.ParseSignal(req.Signal)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	out, err := s.svc.Signal(turnContext(r), sig)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.turn(out))
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := s.svc.EditDocument(r.Context(), req.Document); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.room())
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Return(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.room())
}

func (s *Server) handleForceEnd(w http.ResponseWriter, r *http.Request) {
	s.svc.ForceEnd(r.Context())
	writeJSON(w, http.StatusOK, s.room())
}

// ─────────────────────────────────────────────
// Room Helpers
// ─────────────────────────────────────────────

func (s *Server) room() roomResponse {
	snap := s.svc.Snapshot()

	msgs := make([]messageResponse, 0, len(snap.Messages))
	for _, v := range protocol.Visible(snap.Messages) {
		msgs = append(msgs, messageResponse{
			ID:        v.ID,
			Label:     v.Label,
			Content:   v.Content,
			HasShadow: v.HasShadow,
			Shadow:    v.Shadow,
			Shared:    v.Shared,
			CreatedAt: v.CreatedAt,
		})
	}

	moods := snap.Profile.Moods
	if moods == nil {
		moods = []string{}
	}
	return roomResponse{
		Status:     string(snap.Status),
		TurnOwner:  string(snap.Turn),
		Atmosphere: string(snap.Atmosphere),
		Document:   snap.Document,
		Profile: profileResponse{
			Name:      snap.Profile.Name,
			Intention: snap.Profile.Intention,
			Moods:     moods,
		},
		DeclineReason: snap.DeclineReason,
		Messages:      msgs,
	}
}

func (s *Server) turn(out *conversation.TurnOutput) turnResponse {
	return turnResponse{
		Glimmer:     out.Effects.Glimmer,
		Ended:       out.Effects.Ended,
		Degraded:    out.Result.Degraded,
		Interrupted: out.Interrupted,
		Room:        s.room(),
	}
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

// turnContext detaches a remote round trip from the client connection: once
// issued it runs to completion or failure. Request-scoped values are kept.
func turnContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTurnLocked), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyIntention),
		errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrCredentialFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCredentialMissing), errors.Is(err, domain.ErrCredentialRevoked):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		internalError(w, err)
		return
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
