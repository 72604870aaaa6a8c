package server

import (
	"errors"
	"net/http"
	"strings"

	"vanads/internal/checkin"
	"vanads/pkg/types"
)

func (s *Service) handleGetCheckinVans(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	vans, err := s.checkin.VansByAccessCode(r.Context(), code)
	if err != nil && !errors.Is(err, types.ErrCampaignNotFound) {
		s.writeStoreError(w, r, err, "failed to list vans for access code")
		return
	}
	if len(vans) == 0 {
		s.writeError(w, http.StatusNotFound, "no vans found for access code")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"vans": vans})
}

func (s *Service) handlePostCheckinPhoto(w http.ResponseWriter, r *http.Request) {
	linkID, err := pathID(r, "linkID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "photo exceeds the upload limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	stage := types.Stage(strings.TrimSpace(r.FormValue("stage")))

	file, header, err := r.FormFile("photo")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer file.Close()

	photo, err := s.checkin.SubmitPhoto(r.Context(), linkID, stage, checkin.Upload{
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		s.writeStoreError(w, r, err, "failed to submit photo")
		return
	}

	s.writeJSON(w, http.StatusCreated, photo)
}

func (s *Service) handleGetCheckinProgress(w http.ResponseWriter, r *http.Request) {
	linkID, err := pathID(r, "linkID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	progress, err := s.checkin.Progress(r.Context(), linkID)
	if errors.Is(err, types.ErrInvalidLink) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err, "failed to load progress")
		return
	}

	s.writeJSON(w, http.StatusOK, progress)
}

type authenticateRequest struct {
	AccessCode string `json:"accessCode"`
}

func (s *Service) handlePostAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.AccessCode))
	if code == "" {
		s.writeError(w, http.StatusBadRequest, "access code is required")
		return
	}

	campaign, err := s.campaignRepo.CampaignByAccessCode(r.Context(), code)
	if errors.Is(err, types.ErrCampaignNotFound) {
		s.writeError(w, http.StatusUnauthorized, "invalid access code")
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err, "failed to authenticate access code")
		return
	}

	s.writeJSON(w, http.StatusOK, campaign)
}
