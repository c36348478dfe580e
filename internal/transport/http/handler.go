package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"evalform-service/internal/app"
	"evalform-service/internal/domain"
)

// Handler wires the questionnaire and review use cases into HTTP routes.
type Handler struct {
	sessions      *app.SessionService
	review        *app.ReviewService
	reports       *app.ReportService
	questionnaire app.QuestionnaireRepository
	auth          *Authenticator
	// invalidate drops the questionnaire cache after an applied suggestion;
	// nil when no cache sits in front of the store.
	invalidate func()
}

func NewHandler(sessions *app.SessionService, review *app.ReviewService, reports *app.ReportService, questionnaire app.QuestionnaireRepository, auth *Authenticator, invalidate func()) *Handler {
	return &Handler{
		sessions:      sessions,
		review:        review,
		reports:       reports,
		questionnaire: questionnaire,
		auth:          auth,
		invalidate:    invalidate,
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/questionnaire", h.handleQuestionnaire)
	mux.HandleFunc("POST /api/sessions", h.handleStartSession)
	mux.HandleFunc("GET /api/sessions/{code}", h.handleResumeSession)
	mux.HandleFunc("PUT /api/sessions/{code}/answers", h.handleSaveAnswers)
	mux.HandleFunc("POST /api/sessions/{code}/finish", h.handleFinish)
	mux.HandleFunc("POST /api/steps/{step}/validate", h.handleValidateStep)
	mux.HandleFunc("POST /api/preview/summary", h.handlePreview)
	mux.HandleFunc("POST /api/suggestions", h.handleCreateSuggestion)
	mux.HandleFunc("GET /api/suggestions", h.auth.Require(h.handleListSuggestions))
	mux.HandleFunc("POST /api/suggestions/{id}/apply", h.auth.Require(h.handleApply))
	mux.HandleFunc("POST /api/suggestions/{id}/reject", h.auth.Require(h.handleReject))
	mux.HandleFunc("POST /api/resources", h.auth.Require(h.handleCreateResource))
	mux.HandleFunc("POST /api/report", h.handleReport)
}

func (h *Handler) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	qn, err := h.questionnaire.GetQuestionnaire(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qn)
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var user domain.UserContext
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid profile payload")
		return
	}
	sub, err := h.sessions.Start(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	sub, err := h.sessions.Resume(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type answersRequest struct {
	Answers map[string]domain.Answer `json:"answers"`
}

func (h *Handler) handleSaveAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid answers payload")
		return
	}
	if err := h.sessions.SaveAnswers(r.Context(), r.PathValue("code"), req.Answers); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid answers payload")
		return
	}
	summary, err := h.sessions.Finish(r.Context(), r.PathValue("code"), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleValidateStep(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid step")
		return
	}
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid answers payload")
		return
	}
	if err := h.sessions.ValidateStep(r.Context(), step, req.Answers); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid answers payload")
		return
	}
	summary, err := h.sessions.Preview(r.Context(), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type createSuggestionRequest struct {
	Kind    domain.SuggestionKind `json:"kind"`
	Payload json.RawMessage       `json:"payload"`
	Comment string                `json:"comment"`
}

func (h *Handler) handleCreateSuggestion(w http.ResponseWriter, r *http.Request) {
	var req createSuggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid suggestion payload")
		return
	}
	payload, err := domain.DecodeSuggestionPayload(req.Kind, req.Payload)
	if err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sug, err := h.review.CreateSuggestion(r.Context(), payload, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sug)
}

func (h *Handler) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	status := domain.SuggestionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.StatusPending
	}
	sugs, err := h.review.SuggestionsByStatus(r.Context(), callerID(r), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sugs)
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	if err := h.review.Apply(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	if h.invalidate != nil {
		h.invalidate()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	if err := h.review.Reject(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var res domain.Resource
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid resource payload")
		return
	}
	created, err := h.review.CreateResource(r.Context(), callerID(r), res)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.invalidate != nil {
		h.invalidate()
	}
	writeJSON(w, http.StatusCreated, created)
}

type reportRequest struct {
	SessionCode string `json:"sessionCode"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid report payload")
		return
	}
	report, err := h.reports.Build(r.Context(), req.SessionCode)
	if err != nil {
		if isDomainErr(err) {
			writeError(w, err)
			return
		}
		// narrative generation failed upstream; retry is up to the caller
		writeErrorMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- helpers ---

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: vErr.Error(), Missing: vErr.Missing})
	case errors.Is(err, domain.ErrSubmissionNotFound),
		errors.Is(err, domain.ErrSuggestionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyProcessed):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		writeErrorMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrDanglingEvaluationItem):
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("request failed: %v", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func isDomainErr(err error) bool {
	return errors.Is(err, domain.ErrSubmissionNotFound) ||
		errors.Is(err, domain.ErrSuggestionNotFound) ||
		errors.Is(err, domain.ErrQuestionNotFound) ||
		errors.Is(err, domain.ErrAlreadyProcessed) ||
		errors.Is(err, domain.ErrPermissionDenied)
}
