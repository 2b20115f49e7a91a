package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shift-coverage/internal/audit"
	"shift-coverage/internal/auth"
	"shift-coverage/internal/award"
	"shift-coverage/internal/coverage"
	"shift-coverage/internal/models"
	"shift-coverage/internal/ratelimit"
	"shift-coverage/internal/telemetry"
)

// Server wires HTTP handlers onto the coverage service.
type Server struct {
	svc     *coverage.Service
	issuer  *auth.Issuer
	limiter *ratelimit.TokenBucket
}

// New constructs the API server. A nil issuer accepts the X-Actor header
// instead of a token; a nil limiter disables throttling.
func New(svc *coverage.Service, issuer *auth.Issuer, limiter *ratelimit.TokenBucket) *Server {
	return &Server{svc: svc, issuer: issuer, limiter: limiter}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(contentTypeJSON)
		r.Use(s.authenticate)

		r.Get("/vacancies", s.handleListVacancies)
		r.Post("/vacancies", s.handleCreateVacancy)
		r.Route("/vacancies/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetVacancy)
			r.Put("/", s.handleReplaceVacancy)
			r.Get("/offering", s.handleGetOffering)
			r.Post("/tier", s.handleChangeTier)
			r.Post("/round/reset", s.handleResetRound)
			r.Put("/auto-progress", s.handleAutoProgress)
			r.Put("/round-minutes", s.handleRoundMinutes)
			r.Post("/hold", s.handleHold)
			r.Post("/reopen", s.handleReopen)
			r.Get("/deadline", s.handleDeadline)
			r.Get("/responses", s.handleListResponses)
			r.Post("/responses", s.handleSubmitResponse)
			r.Get("/recommendation", s.handleRecommend)
		})
		r.Post("/absences", s.handleExpandAbsence)
		r.Post("/awards", s.handleAward)
		r.Get("/audit", s.handleAudit)
		r.Get("/audit/history", s.handleAuditHistory)
		r.Delete("/audit", s.handleClearAudit)
		r.Get("/employees", s.handleListEmployees)
		r.Put("/employees/{id}", s.handleUpsertEmployee)
	})
	return r
}

type vacancyRequest struct {
	ID             string                `json:"id"`
	OriginRef      string                `json:"origin_ref"`
	Classification models.Classification `json:"classification"`
	Unit           string                `json:"unit"`
	ShiftDate      string                `json:"shift_date"`
	ShiftStart     string                `json:"shift_start"`
	ShiftEnd       string                `json:"shift_end"`
	KnownAt        *time.Time            `json:"known_at"`
	RoundMinutes   int                   `json:"round_minutes"`
	AutoProgress   *bool                 `json:"auto_progress"`
}

func (req vacancyRequest) vacancy(settings models.Settings) models.Vacancy {
	v := models.Vacancy{
		ID:                   req.ID,
		OriginRef:            req.OriginRef,
		Classification:       req.Classification,
		Unit:                 req.Unit,
		ShiftDate:            req.ShiftDate,
		ShiftStart:           req.ShiftStart,
		ShiftEnd:             req.ShiftEnd,
		OfferingRoundMinutes: req.RoundMinutes,
		OfferingAutoProgress: settings.DefaultAutoProgress,
	}
	if req.KnownAt != nil {
		v.KnownAt = *req.KnownAt
	}
	if req.AutoProgress != nil {
		v.OfferingAutoProgress = *req.AutoProgress
	}
	return v
}

func (s *Server) handleListVacancies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"vacancies": s.svc.Vacancies()})
}

func (s *Server) handleCreateVacancy(w http.ResponseWriter, r *http.Request) {
	var req vacancyRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.svc.CreateVacancy(req.vacancy(s.svc.Settings()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGetVacancy(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Vacancy(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleReplaceVacancy(w http.ResponseWriter, r *http.Request) {
	var req vacancyRequest
	if !decode(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	v, err := s.svc.ReplaceVacancy(req.vacancy(s.svc.Settings()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleExpandAbsence(w http.ResponseWriter, r *http.Request) {
	var a models.Absence
	if !decode(w, r, &a) {
		return
	}
	vs, err := s.svc.ExpandAbsence(a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"vacancies": vs})
}

func (s *Server) handleGetOffering(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Offering(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type tierRequest struct {
	Tier      *models.Tier `json:"tier"`
	Note      string       `json:"note"`
	Confirmed bool         `json:"confirmed"`
}

func (s *Server) handleChangeTier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req tierRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Tier == nil {
		http.Error(w, "tier is required", http.StatusBadRequest)
		return
	}
	tier := *req.Tier
	if models.RequiresConfirmation(tier) && !req.Confirmed {
		current, err := s.svc.Offering(id)
		if err != nil {
			writeError(w, err)
			return
		}
		if current.Tier != tier {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":              "entering " + tier.String() + " requires confirmation",
				"needs_confirmation": true,
			})
			return
		}
	}
	view, err := s.svc.ChangeTier(id, tier, actorFrom(r.Context()), req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleResetRound(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.ResetRound(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAutoProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}
	view, err := s.svc.SetAutoProgress(chi.URLParam(r, "id"), *req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRoundMinutes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes *float64 `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Minutes == nil {
		http.Error(w, "minutes is required", http.StatusBadRequest)
		return
	}
	view, applied, err := s.svc.SetRoundMinutes(chi.URLParam(r, "id"), *req.Minutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offering": view, "applied": applied})
}

func (s *Server) handleHold(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.HoldForAward(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleReopen(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Reopen(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeadline(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Deadline(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	rs, err := s.svc.Responses(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": rs})
}

type responseRequest struct {
	EmployeeID string `json:"employee_id"`
	Note       string `json:"note"`
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if !decode(w, r, &req) {
		return
	}
	if req.EmployeeID == "" {
		http.Error(w, "employee_id is required", http.StatusBadRequest)
		return
	}
	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), req.EmployeeID)
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}
	resp, err := s.svc.SubmitResponse(chi.URLParam(r, "id"), req.EmployeeID, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Recommend(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type awardRequest struct {
	Target string `json:"target"`
	award.Request
}

func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Target == "" {
		http.Error(w, "target is required", http.StatusBadRequest)
		return
	}
	res, err := s.svc.Award(req.Target, req.Request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date != "" {
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	entries := s.svc.Audit(audit.Filter{VacancyID: q.Get("vacancy_id"), Date: date})
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleAuditHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date != "" {
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
	}
	entries, durable, err := s.svc.AuditHistory(r.Context(), audit.Filter{VacancyID: q.Get("vacancy_id"), Date: date})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "durable": durable})
}

func (s *Server) handleClearAudit(w http.ResponseWriter, _ *http.Request) {
	s.svc.ClearAudit()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleListEmployees(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"employees": s.svc.Employees()})
}

func (s *Server) handleUpsertEmployee(w http.ResponseWriter, r *http.Request) {
	var e models.Employee
	if !decode(w, r, &e) {
		return
	}
	e.ID = chi.URLParam(r, "id")
	saved, err := s.svc.UpsertEmployee(e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

type conflictBody struct {
	Error             string `json:"error"`
	NeedsConfirmation bool   `json:"needs_confirmation"`
	*award.ConflictError
}

// writeError maps domain errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	var conflict *award.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, conflictBody{
			Error:             err.Error(),
			NeedsConfirmation: conflict.NeedsConfirmation(),
			ConflictError:     conflict,
		})
	case errors.Is(err, coverage.ErrNotFound), errors.Is(err, award.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, coverage.ErrNotOpen), errors.Is(err, coverage.ErrExists), errors.Is(err, award.ErrAlreadyAwarded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, coverage.ErrInvalid), errors.Is(err, award.ErrReasonRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, award.ErrNoCandidate):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
