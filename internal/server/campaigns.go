package server

import (
	"fmt"
	"net/http"

	"vanads/pkg/types"
)

type listResponse[T any] struct {
	Items      []T              `json:"items"`
	Pagination types.Pagination `json:"pagination"`
}

func (s *Service) handleGetCampaigns(w http.ResponseWriter, r *http.Request) {
	var filter types.CampaignFilter
	if err := decodeQuery(r.URL.Query(), &filter); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	campaigns, page, err := s.campaignRepo.Campaigns(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to list campaigns")
		return
	}
	if campaigns == nil {
		campaigns = make([]*types.Campaign, 0)
	}

	s.writeJSON(w, http.StatusOK, listResponse[*types.Campaign]{Items: campaigns, Pagination: page})
}

func (s *Service) handlePostCampaign(w http.ResponseWriter, r *http.Request) {
	var input types.CampaignInput
	if err := decodeJSON(r, &input); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	campaign, err := s.campaignRepo.CreateCampaign(r.Context(), &input)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to create campaign")
		return
	}

	s.writeJSON(w, http.StatusCreated, campaign)
}

func (s *Service) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	campaign, err := s.campaignRepo.Campaign(r.Context(), campaignID)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to fetch campaign")
		return
	}

	s.writeJSON(w, http.StatusOK, campaign)
}

func (s *Service) handlePutCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var input types.CampaignInput
	if err := decodeJSON(r, &input); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.AccessCode != nil {
		s.writeError(w, http.StatusBadRequest, "access code cannot be changed")
		return
	}

	campaign, err := s.campaignRepo.UpdateCampaign(r.Context(), campaignID, &input)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to update campaign")
		return
	}

	s.writeJSON(w, http.StatusOK, campaign)
}

func (s *Service) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.campaignRepo.DeleteCampaign(r.Context(), campaignID); err != nil {
		s.writeStoreError(w, r, err, "failed to delete campaign")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetCampaignVans(w http.ResponseWriter, r *http.Request) {
	campaignID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.campaignRepo.Campaign(r.Context(), campaignID); err != nil {
		s.writeStoreError(w, r, err, "failed to fetch campaign")
		return
	}

	vans, err := s.linkRepo.LinkedVans(r.Context(), campaignID)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to list campaign vans")
		return
	}
	if vans == nil {
		vans = make([]*types.LinkedVan, 0)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"vans": vans})
}

type associateVansRequest struct {
	VanIDs []int64 `json:"vanIds"`
}

func (s *Service) handlePostCampaignVans(w http.ResponseWriter, r *http.Request) {
	campaignID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req associateVansRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.VanIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "vanIds is required")
		return
	}

	links, err := s.linkRepo.AssociateVans(r.Context(), campaignID, req.VanIDs)
	if err != nil {
		s.writeStoreError(w, r, err, "failed to associate vans")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("%d vans associated", len(links)),
		"links":   links,
	})
}

func (s *Service) handleDeleteCampaignVan(w http.ResponseWriter, r *http.Request) {
	campaignID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	vanID, err := pathID(r, "vanID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.linkRepo.DissociateVan(r.Context(), campaignID, vanID); err != nil {
		s.writeStoreError(w, r, err, "failed to dissociate van")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
