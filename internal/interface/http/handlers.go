package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/eyd-portfolio/portfolio-analytics/config"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/command"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/query"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot lists the API routes.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "EYD Portfolio Analytics API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":            "/health",
			"catalog":           "/api/v1/catalog",
			"questionnaires":    "/api/v1/questionnaires",
			"epa_matrix":        "/api/v1/trainees/{id}/epa-matrix",
			"portfolio_summary": "/api/v1/trainees/{id}/portfolio-summary",
			"survey_results":    "/api/v1/trainees/{id}/surveys/{code}/results",
		},
	})
}

// handleHealth reports every registered check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if status.Version == "" {
		status.Version = s.config.Version
	}
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady answers 503 while a required check fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REFERENCE DATA HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetCatalog handles GET /api/v1/catalog
func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Catalog not configured")
		return
	}
	writeJSON(w, r, http.StatusOK, query.ListCatalog(s.deps.Catalog))
}

// handleGetQuestionnaires handles GET /api/v1/questionnaires
func (s *Server) handleGetQuestionnaires(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Questionnaire registry not configured")
		return
	}
	writeJSON(w, r, http.StatusOK, query.ListInstruments(s.deps.Registry))
}

// ══════════════════════════════════════════════════════════════════════════════
// TRAINEE SUMMARY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetEPAMatrix handles GET /api/v1/trainees/{id}/epa-matrix
func (s *Server) handleGetEPAMatrix(w http.ResponseWriter, r *http.Request) {
	if s.deps.CoverageMatrix == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "EPA matrix handler not configured")
		return
	}

	res, err := s.deps.CoverageMatrix.Handle(r.Context(), query.GetCoverageMatrixQuery{
		TraineeID: r.PathValue("id"),
		Refresh:   getQueryParamBool(r, "refresh"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res.Envelope)
}

// handleGetPortfolioSummary handles GET /api/v1/trainees/{id}/portfolio-summary
func (s *Server) handleGetPortfolioSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.PortfolioSummary == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Portfolio summary handler not configured")
		return
	}

	res, err := s.deps.PortfolioSummary.Handle(r.Context(), query.GetPortfolioSummaryQuery{
		TraineeID: r.PathValue("id"),
		Refresh:   getQueryParamBool(r, "refresh"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res.Envelope)
}

// handleGetSurveyResults handles GET /api/v1/trainees/{id}/surveys/{code}/results
func (s *Server) handleGetSurveyResults(w http.ResponseWriter, r *http.Request) {
	if s.deps.SurveyResults == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Survey results handler not configured")
		return
	}

	traineeID := r.PathValue("id")
	hideRecent := getQueryParamBool(r, "hide_recent") || s.deps.Features.HidesRecentResponses(traineeID)

	res, err := s.deps.SurveyResults.Handle(r.Context(), query.GetSurveyResultsQuery{
		TraineeID:         traineeID,
		QuestionnaireCode: r.PathValue("code"),
		Refresh:           getQueryParamBool(r, "refresh"),
		HideRecent:        hideRecent,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res.Envelope)
}

// handleInvalidateCache handles DELETE /api/v1/trainees/{id}/cache
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Features.Enabled(config.FeatureCacheInvalidation) {
		writeJSONError(w, r, http.StatusForbidden, "feature_disabled", "Cache invalidation is disabled")
		return
	}
	if s.deps.InvalidateSummaries == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Cache invalidation not configured")
		return
	}

	traineeID := r.PathValue("id")
	err := s.deps.InvalidateSummaries.Handle(r.Context(), command.InvalidateSummariesCommand{TraineeID: traineeID})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"trainee_id":  traineeID,
		"invalidated": true,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusFor maps an error to its HTTP status and API error code.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsInputIntegrity(err):
		return http.StatusUnprocessableEntity, "input_integrity"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case shared.IsInputUnavailable(err):
		return http.StatusServiceUnavailable, "input_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case shared.IsInvalidConfiguration(err):
		return http.StatusInternalServerError, "invalid_configuration"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError logs and writes err. Server-side failures keep their
// details out of the response.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.String("path", r.URL.Path), logger.Err(err))
		writeJSONError(w, r, status, code, http.StatusText(status))
		return
	}

	log.Debug("request rejected", logger.String("path", r.URL.Path), logger.Int("status", status), logger.Err(err))
	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}
	writeJSONErrorWithDetails(w, r, status, code, message, err.Error())
}
