// Package api exposes HTTP handlers for the carbon service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/carbon/internal/accounts"
	"example.com/carbon/internal/auth"
	"example.com/carbon/internal/domain"
	"example.com/carbon/internal/emissions"
)

// Request headers carrying guest identity and region preference.
const (
	headerSessionID  = "X-Session-Id"
	headerUserRegion = "X-User-Region"
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	service  *domain.Service
	accounts *accounts.Service
	authCfg  auth.Config
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, accountsService *accounts.Service, authCfg auth.Config) *Handler {
	return &Handler{service: service, accounts: accountsService, authCfg: authCfg}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/activities", h.activities)
	mux.HandleFunc("/api/v1/activities/summary", h.emissionSummary)
	mux.HandleFunc("/api/v1/activities/", h.activityByID)
	mux.HandleFunc("/api/v1/emission_factors", h.emissionFactors)
	mux.HandleFunc("/api/v1/auth/signup", h.signup)
	mux.HandleFunc("/api/v1/auth/login", h.login)
	mux.HandleFunc("/api/v1/auth/logout", h.logout)
	mux.HandleFunc("/api/v1/auth/me", h.me)
	mux.HandleFunc("/api/v1/auth/claim", h.claim)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ownerFromRequest resolves the caller's ownership scope: the
// authenticated account when a valid token was presented, otherwise the
// anonymous session token header. The zero Owner means neither.
func ownerFromRequest(r *http.Request) domain.Owner {
	if claims, ok := auth.FromContext(r.Context()); ok {
		return domain.OwnedByUser(claims.UserID)
	}
	if token := strings.TrimSpace(r.Header.Get(headerSessionID)); token != "" {
		return domain.OwnedBySession(token)
	}
	return domain.Owner{}
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/activities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, id)
	case http.MethodPut, http.MethodPatch:
		h.updateActivity(w, r, id)
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	if owner.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_request", "authentication or X-Session-Id header required")
		return
	}

	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	activity, err := h.service.LogActivity(r.Context(), domain.LogActivityInput{
		Owner:        owner,
		ActivityType: req.ActivityType,
		Description:  req.Description,
		Quantity:     req.Quantity,
		Region:       r.Header.Get(headerUserRegion),
		OccurredAt:   req.OccurredAt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	if owner.IsZero() {
		writeJSON(w, http.StatusOK, ListActivitiesResponse{
			Activities: []ActivityView{},
		})
		return
	}

	activities, total, err := h.service.ListActivities(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}

	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Activities: items,
		Summary: ListSummary{
			TotalEmissionsKg: total,
			ActivityCount:    len(items),
		},
	})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	owner := ownerFromRequest(r)
	if owner.IsZero() {
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
		return
	}

	activity, err := h.service.GetActivity(r.Context(), owner, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id string) {
	owner := ownerFromRequest(r)
	if owner.IsZero() {
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
		return
	}

	var req UpdateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	activity, err := h.service.UpdateActivity(r.Context(), owner, id, domain.UpdateActivityInput{
		ActivityType: req.ActivityType,
		Description:  req.Description,
		Quantity:     req.Quantity,
		Region:       req.Region,
		OccurredAt:   req.OccurredAt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	owner := ownerFromRequest(r)
	if owner.IsZero() {
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
		return
	}

	if err := h.service.DeleteActivity(r.Context(), owner, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) emissionSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	owner := ownerFromRequest(r)
	if owner.IsZero() {
		writeJSON(w, http.StatusOK, SummaryResponse{ByType: []TypeEmissionView{}, Daily: []DailyEmissionView{}})
		return
	}

	summary, err := h.service.EmissionSummary(r.Context(), owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

func (h *Handler) emissionFactors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	factors := make(map[string]FactorView, len(emissions.LocalFactors))
	for activityType, factor := range emissions.LocalFactors {
		factors[activityType] = FactorView{
			Factor:      factor.Factor,
			Unit:        factor.Unit,
			Description: factor.Description,
		}
	}
	writeJSON(w, http.StatusOK, factors)
}

// writeServiceError maps domain errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeValidationError(w, validationErr.Messages())
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrOwnerRequired):
		writeError(w, http.StatusBadRequest, "invalid_request", "activity owner required")
	case errors.Is(err, domain.ErrSessionTokenRequired):
		writeError(w, http.StatusBadRequest, "invalid_request", "session id required")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// ActivityRequest is the payload for POST /api/v1/activities.
type ActivityRequest struct {
	ActivityType string    `json:"activity_type"`
	Description  string    `json:"description"`
	Quantity     float64   `json:"quantity"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// UpdateActivityRequest is a partial patch; absent fields stay unchanged.
type UpdateActivityRequest struct {
	ActivityType *string    `json:"activity_type"`
	Description  *string    `json:"description"`
	Quantity     *float64   `json:"quantity"`
	Region       *string    `json:"region"`
	OccurredAt   *time.Time `json:"occurred_at"`
}

// ActivityView exposes an activity with its computed emission.
type ActivityView struct {
	ID             string    `json:"id"`
	ActivityType   string    `json:"activity_type"`
	Description    string    `json:"description,omitempty"`
	Quantity       float64   `json:"quantity"`
	Region         string    `json:"region"`
	Unit           string    `json:"unit"`
	EmissionKg     float64   `json:"emission_kg"`
	EmissionSource string    `json:"emission_source"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListSummary carries the list totals.
type ListSummary struct {
	TotalEmissionsKg float64 `json:"total_emissions_kg"`
	ActivityCount    int     `json:"activity_count"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Activities []ActivityView `json:"activities"`
	Summary    ListSummary    `json:"summary"`
}

// FactorView renders one local factor table entry.
type FactorView struct {
	Factor      float64 `json:"factor"`
	Unit        string  `json:"unit"`
	Description string  `json:"description"`
}

// TypeEmissionView is one slice of the by-type breakdown.
type TypeEmissionView struct {
	ActivityType string  `json:"activity_type"`
	EmissionKg   float64 `json:"emission_kg"`
	Count        int     `json:"count"`
}

// DailyEmissionView is one point of the daily series.
type DailyEmissionView struct {
	Day        string  `json:"day"`
	EmissionKg float64 `json:"emission_kg"`
}

// SummaryResponse is the dashboard aggregate payload.
type SummaryResponse struct {
	TotalEmissionsKg float64             `json:"total_emissions_kg"`
	ActivityCount    int                 `json:"activity_count"`
	ByType           []TypeEmissionView  `json:"by_type"`
	Daily            []DailyEmissionView `json:"daily"`
}

func toSummaryResponse(summary *domain.Summary) SummaryResponse {
	resp := SummaryResponse{
		TotalEmissionsKg: summary.TotalEmissionsKg,
		ActivityCount:    summary.ActivityCount,
		ByType:           make([]TypeEmissionView, 0, len(summary.ByType)),
		Daily:            make([]DailyEmissionView, 0, len(summary.Daily)),
	}
	for _, entry := range summary.ByType {
		resp.ByType = append(resp.ByType, TypeEmissionView{
			ActivityType: entry.ActivityType,
			EmissionKg:   entry.EmissionKg,
			Count:        entry.Count,
		})
	}
	for _, entry := range summary.Daily {
		resp.Daily = append(resp.Daily, DailyEmissionView{
			Day:        entry.Day.Format("2006-01-02"),
			EmissionKg: entry.EmissionKg,
		})
	}
	return resp
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ID:             activity.ID,
		ActivityType:   activity.ActivityType,
		Description:    activity.Description,
		Quantity:       activity.Quantity,
		Region:         activity.Region,
		Unit:           activity.Unit,
		EmissionKg:     activity.EmissionKg,
		EmissionSource: activity.EmissionSource,
		OccurredAt:     activity.OccurredAt,
		CreatedAt:      activity.CreatedAt,
		UpdatedAt:      activity.UpdatedAt,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeValidationError(w http.ResponseWriter, messages []string) {
	payload := map[string]interface{}{
		"type":   "validation_failed",
		"errors": messages,
	}
	writeJSON(w, http.StatusUnprocessableEntity, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
