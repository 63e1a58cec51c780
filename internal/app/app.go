package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	httpapp "clubmedia/internal/app/http"
	"clubmedia/internal/config"
	"clubmedia/internal/domain/models"
	"clubmedia/internal/services/catalog"
	"clubmedia/internal/services/ingestion"
	uploads "clubmedia/internal/services/upload_service"
	storage "clubmedia/internal/storage/filestorage"
	httprouters "clubmedia/internal/transport/http"
)

const (
	transferSimulated = "simulated"
	transferStorage   = "storage"

	photosDir = "photos"
)

type App struct {
	HTTPServer    *httpapp.Server
	Catalog       *catalog.Store
	UploadService *uploads.UploadService
}

func New(log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	files, err := storage.NewLocalFileStorage(cfg.FileStorage.BaseDir, cfg.FileStorage.BaseURL, cfg.FileStorage.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	store := catalog.New(log, cfg.Catalog.Locale)
	if cfg.Catalog.SeedDemo {
		if err := store.Merge(catalog.DemoPhotos(time.Now().UTC())); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("demo photos loaded", slog.Int("photos", store.Len()))
	}

	defaultCategory, err := models.ParseCategory(cfg.Ingestion.DefaultCategory)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var transferer ingestion.Transferer
	switch cfg.Ingestion.Transfer {
	case transferStorage:
		transferer = ingestion.NewStorageTransfer(log, files, photosDir)
	case transferSimulated, "":
		sim := ingestion.NewSimulatedTransfer(cfg.Ingestion.TransferSteps, cfg.Ingestion.TransferStepDelay)
		sim.ResolveURI = files.URL
		transferer = sim
	default:
		return nil, fmt.Errorf("%s: unknown transfer mode %q", op, cfg.Ingestion.Transfer)
	}

	perms := ingestion.NewCachedPermissions(
		ingestion.PolicyPermissions{
			Library: cfg.Ingestion.AllowLibrary,
			Camera:  cfg.Ingestion.AllowCamera,
		},
		cfg.Ingestion.PermissionTTL,
	)

	uploadService, err := uploads.NewUploadService(log, uploads.Config{
		Pipeline: ingestion.Config{
			MaxAssets:       cfg.Ingestion.MaxAssets,
			AllowMultiple:   cfg.Ingestion.AllowMultiple,
			DefaultCategory: defaultCategory,
		},
		SessionTTL: cfg.Ingestion.SessionTTL,
	}, files, perms, transferer, store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	routers := httprouters.NewRouter(log, store, uploadService)

	server := httpapp.New(
		log,
		cfg.Auth.TokenSecret,
		cfg.HTTP.Host,
		cfg.HTTP.Port,
		files.GetBaseDir(),
		filesPath(files.BaseURL()),
		cfg.HTTP.Timeout,
		routers,
	)

	return &App{
		HTTPServer:    server,
		Catalog:       store,
		UploadService: uploadService,
	}, nil
}

// filesPath выделяет путь из базового URL хранилища: "http://host/uploads" -> "/uploads"
func filesPath(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Path == "" {
		return "/uploads"
	}
	return u.Path
}
