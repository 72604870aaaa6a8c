package server

import (
	"net/http"
	"strings"

	"vanads/pkg/types"
)

func (s *Service) handleGetVans(w http.ResponseWriter, r *http.Request) {
	var filter types.VanFilter
	if err := decodeQuery(r.URL.Query(), &filter); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	vans, page, err := s.vanRepo.Vans(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to list vans")
		return
	}
	if vans == nil {
		vans = make([]*types.Van, 0)
	}

	s.writeJSON(w, http.StatusOK, listResponse[*types.Van]{Items: vans, Pagination: page})
}

func (s *Service) handlePostVan(w http.ResponseWriter, r *http.Request) {
	var input types.VanInput
	if err := decodeJSON(r, &input); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	van, err := s.vanRepo.CreateVan(r.Context(), &input)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to create van")
		return
	}

	s.writeJSON(w, http.StatusCreated, van)
}

func (s *Service) handleGetVan(w http.ResponseWriter, r *http.Request) {
	vanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	van, err := s.vanRepo.Van(r.Context(), vanID)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to fetch van")
		return
	}

	s.writeJSON(w, http.StatusOK, van)
}

func (s *Service) handlePutVan(w http.ResponseWriter, r *http.Request) {
	vanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var input types.VanInput
	if err := decodeJSON(r, &input); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	van, err := s.vanRepo.UpdateVan(r.Context(), vanID, &input)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to update van")
		return
	}

	s.writeJSON(w, http.StatusOK, van)
}

func (s *Service) handleDeleteVan(w http.ResponseWriter, r *http.Request) {
	vanID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.vanRepo.DeleteVan(r.Context(), vanID); err != nil {
		s.writeStoreError(w, r, err, "failed to delete van")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type vanSearchRequest struct {
	City       string `json:"city"`
	State      string `json:"state"`
	CampaignID int64  `json:"campaignId"`
	Page       uint64 `json:"page"`
	PerPage    uint64 `json:"perPage"`
}

// handlePostVanSearch lists the active vans of a municipality. With a
// campaign ID, vans already linked to that campaign are left out.
func (s *Service) handlePostVanSearch(w http.ResponseWriter, r *http.Request) {
	var req vanSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.City) == "" || strings.TrimSpace(req.State) == "" {
		s.writeError(w, http.StatusBadRequest, "city and state are required")
		return
	}

	vans, page, err := s.vanRepo.Vans(r.Context(), types.VanFilter{
		City:       req.City,
		State:      req.State,
		Status:     types.VanStatusActive,
		CampaignID: req.CampaignID,
		Unlinked:   req.CampaignID > 0,
		Page:       req.Page,
		PerPage:    req.PerPage,
	})
	if err != nil {
		s.writeStoreError(w, r, err, "failed to search vans")
		return
	}
	if vans == nil {
		vans = make([]*types.Van, 0)
	}

	s.writeJSON(w, http.StatusOK, listResponse[*types.Van]{Items: vans, Pagination: page})
}

type availabilityRequest struct {
	CampaignID     int64                     `json:"campaignId"`
	Municipalities []types.MunicipalityInput `json:"municipalities"`
}

func (s *Service) handlePostVanAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Municipalities == nil {
		s.writeError(w, http.StatusBadRequest, "municipalities is required")
		return
	}

	results, err := s.vanRepo.Availability(r.Context(), req.CampaignID, req.Municipalities)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to check van availability")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
