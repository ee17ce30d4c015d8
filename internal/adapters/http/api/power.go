package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/audiomatch/internal/adapters/repository"
	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/power"
	"github.com/okian/audiomatch/internal/validation"
)

// PowerHandler serves the stand-alone power calculators.
type PowerHandler struct {
	assessor *power.Assessor
	lookup   ComponentLookup
}

// NewPowerHandler creates the handler with the default known-difficult table.
func NewPowerHandler() *PowerHandler {
	return &PowerHandler{assessor: power.NewAssessor()}
}

type requirementRequest struct {
	ImpedanceOhms   float64  `json:"impedance_ohms" validate:"gt=0,lte=1000000"`
	SensitivityDBmW *float64 `json:"sensitivity_db_mw,omitempty" validate:"omitempty,gt=0,lte=200"`
	TargetSPL       float64  `json:"target_spl,omitempty" validate:"omitempty,gte=60,lte=140"`
	NeedsAmp        bool     `json:"needs_amp,omitempty"`
	Brand           string   `json:"brand,omitempty" validate:"max=100"`
	Name            string   `json:"name,omitempty" validate:"max=200"`
}

type requirementResponse struct {
	Requirement model.PowerRequirement `json:"requirement"`
	Assessment  power.Assessment       `json:"assessment"`
	Advisable   bool                   `json:"amplification_advisable"`
}

// HandleRequirement handles POST /api/v1/power/requirement.
func (h *PowerHandler) HandleRequirement(w http.ResponseWriter, r *http.Request) {
	var req requirementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeError(w, http.StatusBadRequest, "validation_error", verr)
		return
	}

	var pr model.PowerRequirement
	switch {
	case req.SensitivityDBmW != nil && req.TargetSPL > 0:
		pr = power.ComputeRequirement(req.ImpedanceOhms, *req.SensitivityDBmW, req.TargetSPL)
	case req.TargetSPL > 0:
		pr = power.ComputeRequirement(req.ImpedanceOhms, power.EstimateSensitivity(req.ImpedanceOhms), req.TargetSPL)
		pr.Estimated = true
	default:
		pr = power.RequirementFor(req.ImpedanceOhms, req.SensitivityDBmW)
	}
	a := h.assessor.Assess(req.ImpedanceOhms, req.NeedsAmp, req.Name, req.Brand)

	writeJSON(w, http.StatusOK, requirementResponse{
		Requirement: pr,
		Assessment:  a,
		Advisable:   power.AdvisesAmplification(pr) || a.Difficulty.Rank() >= model.DifficultyDemanding.Rank(),
	})
}

type matchRequest struct {
	Headphones   []model.Component `json:"headphones,omitempty" validate:"max=10"`
	HeadphoneIDs []string          `json:"headphone_ids,omitempty" validate:"max=10,dive,required"`
	Amplifiers   []model.Component `json:"amplifiers,omitempty" validate:"max=50"`
	AmplifierIDs []string          `json:"amplifier_ids,omitempty" validate:"max=50,dive,required"`
}

type matchResponse struct {
	Target  power.Target  `json:"target"`
	Matches []power.Match `json:"matches"`
}

// HandleMatch handles POST /api/v1/power/match. Components may be given
// inline or by catalog ID.
func (h *PowerHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeError(w, http.StatusBadRequest, "validation_error", verr)
		return
	}

	headphones, err := h.resolve(r.Context(), req.Headphones, req.HeadphoneIDs)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	amps, err := h.resolve(r.Context(), req.Amplifiers, req.AmplifierIDs)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}

	loads := make([]model.Electrical, 0, len(headphones))
	for i := range headphones {
		loads = append(loads, headphones[i].Electrical())
	}
	target, ok := power.MostDemanding(loads)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", ErrEmptyLoadList)
		return
	}
	matches := power.MatchAmplifiers(headphones, amps)
	if matches == nil {
		matches = []power.Match{}
	}
	writeJSON(w, http.StatusOK, matchResponse{Target: target, Matches: matches})
}

func (h *PowerHandler) resolve(ctx context.Context, inline []model.Component, ids []string) ([]model.Component, error) {
	out := append([]model.Component(nil), inline...)
	if len(ids) == 0 {
		return out, nil
	}
	if h.lookup == nil {
		return nil, ErrNoLookup
	}
	for _, id := range ids {
		c, err := h.lookup.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (h *PowerHandler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNoLookup) {
		writeError(w, http.StatusNotImplemented, "not_implemented", err)
		return
	}
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeError(w, http.StatusBadGateway, "upstream_error", err)
}
