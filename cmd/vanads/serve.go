package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vanads/internal/checkin"
	"vanads/internal/server"
	"vanads/internal/storage"
	"vanads/internal/store"
	"vanads/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, err := loadConfig()
	if err != nil {
		return err
	}

	manager, err := openManager(ctx, config, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	go manager.RunReconnectLoop(ctx, config.ReconnectInterval)

	files, err := newFileStore(ctx, config)
	if err != nil {
		return err
	}

	campaignRepo := store.NewCampaignRepository(manager)
	vanRepo := store.NewVanRepository(manager)
	linkRepo := store.NewLinkRepository(manager)
	photoRepo := store.NewPhotoRepository(manager)

	checkinService := checkin.NewService(logger, campaignRepo, linkRepo, photoRepo, files)

	var jwkCache *jwk.Cache
	var jwksURL string
	if config.AuthIssuerURL != "" {
		jwkCache, err = jwk.NewCache(ctx, httprc.NewClient())
		if err != nil {
			return fmt.Errorf("failed to initialize jwk cache: %w", err)
		}

		jwksURL = fmt.Sprintf("%s/.well-known/jwks.json", strings.TrimSuffix(config.AuthIssuerURL, "/"))

		if err := jwkCache.Register(ctx, jwksURL); err != nil {
			return fmt.Errorf("failed to register issuer jwks with cache: %w", err)
		}
	} else {
		logger.Warn("AUTH_ISSUER_URL not set, back-office routes are unauthenticated")
	}

	srv := server.New(
		config,
		logger,
		manager,
		checkinService,
		campaignRepo,
		vanRepo,
		linkRepo,
		jwkCache,
		jwksURL,
	)

	go func() {
		logger.WithFields(logrus.Fields{
			"port":  config.ServerPort,
			"store": manager.State().String(),
		}).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

func newFileStore(ctx context.Context, config *types.Config) (storage.FileStore, error) {
	if config.StorageBucket == "" {
		return storage.NewLocalStorage(config.UploadRoot), nil
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	return storage.NewS3Storage(s3.NewFromConfig(awsConfig), config.StorageBucket, awsConfig.Region), nil
}
