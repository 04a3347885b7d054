package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"pdflibrary/internal/app"
	"pdflibrary/internal/config"
	"pdflibrary/internal/googlebooks"
	"pdflibrary/internal/server"
	"pdflibrary/internal/util"
	"pdflibrary/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel, util.LogFileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	var blobs storage.BlobStore
	if cfg.StorageBackend == config.StorageMinio {
		blobs, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init minio storage: %v", err)
		}
	}

	lookup := googlebooks.NewClient(cfg.GoogleBooksURL, time.Duration(cfg.LookupTimeoutSeconds)*time.Second)

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		StorageDir:  cfg.StorageDir,
		Blobs:       blobs,
		Lookup:      lookup,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("library server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
