package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"vanads/internal/checkin"
	"vanads/internal/db"
	"vanads/internal/store"
	"vanads/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
)

type Service struct {
	logger  *logrus.Logger
	config  *types.Config
	manager *db.Manager
	checkin *checkin.Service

	campaignRepo *store.CampaignRepository
	vanRepo      *store.VanRepository
	linkRepo     *store.LinkRepository

	// jwksCache is nil when back-office auth is disabled
	jwksCache *jwk.Cache
	jwksURL   string

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	manager *db.Manager,
	checkinService *checkin.Service,
	campaignRepo *store.CampaignRepository,
	vanRepo *store.VanRepository,
	linkRepo *store.LinkRepository,
	jwksCache *jwk.Cache,
	jwksURL string,
) *Service {
	mux := flow.New()

	s := &Service{
		logger:  logger,
		config:  config,
		manager: manager,
		checkin: checkinService,

		campaignRepo: campaignRepo,
		vanRepo:      vanRepo,
		linkRepo:     linkRepo,

		jwksCache: jwksCache,
		jwksURL:   jwksURL,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	// Unmatched paths never reach mux middleware, so the redirect wraps it.
	s.server.Handler = s.StripTrailingSlash(mux)

	return s
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for httptest.
func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/health", s.handleHealth, http.MethodGet)

	// Field agents, gated by the campaign access code
	r.HandleFunc("/api/checkin/vans/:code", s.handleGetCheckinVans, http.MethodGet)
	r.HandleFunc("/api/checkin/photo/:linkID|^[0-9]+$", s.handlePostCheckinPhoto, http.MethodPost)
	r.HandleFunc("/api/checkin/progress/:linkID|^[0-9]+$", s.handleGetCheckinProgress, http.MethodGet)
	r.HandleFunc("/api/campaigns/authenticate", s.handlePostAuthenticate, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/api/campaigns", s.handleGetCampaigns, http.MethodGet)
		r.HandleFunc("/api/campaigns", s.handlePostCampaign, http.MethodPost)
		r.HandleFunc("/api/campaigns/:id|^[0-9]+$", s.handleGetCampaign, http.MethodGet)
		r.HandleFunc("/api/campaigns/:id|^[0-9]+$", s.handlePutCampaign, http.MethodPut)
		r.HandleFunc("/api/campaigns/:id|^[0-9]+$", s.handleDeleteCampaign, http.MethodDelete)
		r.HandleFunc("/api/campaigns/:id|^[0-9]+$/vans", s.handleGetCampaignVans, http.MethodGet)
		r.HandleFunc("/api/campaigns/:id|^[0-9]+$/vans", s.handlePostCampaignVans, http.MethodPost)
		r.HandleFunc("/api/campaigns/:id|^[0-9]+$/vans/:vanID|^[0-9]+$", s.handleDeleteCampaignVan, http.MethodDelete)

		r.HandleFunc("/api/vans", s.handleGetVans, http.MethodGet)
		r.HandleFunc("/api/vans", s.handlePostVan, http.MethodPost)
		r.HandleFunc("/api/vans/search", s.handlePostVanSearch, http.MethodPost)
		r.HandleFunc("/api/vans/availability", s.handlePostVanAvailability, http.MethodPost)
		r.HandleFunc("/api/vans/:id|^[0-9]+$", s.handleGetVan, http.MethodGet)
		r.HandleFunc("/api/vans/:id|^[0-9]+$", s.handlePutVan, http.MethodPut)
		r.HandleFunc("/api/vans/:id|^[0-9]+$", s.handleDeleteVan, http.MethodDelete)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  s.manager.State().String(),
	})
}
