package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/pkg/logger"
)

// RecommendationsHandler serves POST /api/v1/recommendations.
type RecommendationsHandler struct {
	rec    Recommender
	logger logger.Logger
}

// NewRecommendationsHandler creates the handler.
func NewRecommendationsHandler(rec Recommender) *RecommendationsHandler {
	return &RecommendationsHandler{rec: rec, logger: logger.Get().Named("recommendations")}
}

// HandleRecommend decodes a request, runs the engine and writes the response.
func (h *RecommendationsHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req model.RecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	resp, err := h.rec.Recommend(r.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "recommendation failed",
				logger.String("request_id", req.RequestID),
				logger.String("trace_id", chimiddleware.GetReqID(r.Context())),
				logger.Error(err))
		}
		writeError(w, status, code, err)
		return
	}
	w.Header().Set("X-Request-ID", resp.RequestID)
	writeJSON(w, http.StatusOK, resp)
}
