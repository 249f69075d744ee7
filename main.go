package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"storyweave/config"
	"storyweave/handlers"
	"storyweave/logger"
	"storyweave/materials"
	"storyweave/persist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Server, zl *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var client *mongo.Client
	if cfg.StoryBackend == config.StoryBackendMongo {
		var err error
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				zl.Error("Failed to disconnect from MongoDB", zap.Error(err))
			}
		}()
		if err := client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("ping mongo: %w", err)
		}
	}

	var stories persist.Store
	switch cfg.StoryBackend {
	case config.StoryBackendMongo:
		stories = persist.NewMongoStore(client.Database(cfg.Mongo.Database), cfg.Mongo.StoryID)
		zl.Info("Stories stored in MongoDB", zap.String("database", cfg.Mongo.Database), zap.String("story", cfg.Mongo.StoryID))
	default:
		path := filepath.Join(cfg.MaterialsDir, "story.json")
		stories = persist.NewFileStore(path)
		zl.Info("Stories stored in file", zap.String("path", path))
	}

	var mats materials.Materials
	switch cfg.MediaBackend {
	case config.MediaBackendMinio:
		bucket, err := materials.NewBucket(ctx, materials.BucketConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		}, zl)
		if err != nil {
			return err
		}
		mats = bucket
		zl.Info("Materials stored in bucket", zap.String("endpoint", cfg.Minio.Endpoint), zap.String("bucket", cfg.Minio.Bucket))
	default:
		disk, err := materials.NewDisk(cfg.MaterialsDir)
		if err != nil {
			return err
		}
		mats = disk
		zl.Info("Materials stored on disk", zap.String("dir", disk.Dir()))
	}

	h := handlers.New(stories, mats, cfg.UploadMaxBytes, zl)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h.Router(),
		ReadTimeout:       cfg.Timeouts.Read,
		ReadHeaderTimeout: cfg.Timeouts.Header,
		WriteTimeout:      cfg.Timeouts.Write,
		IdleTimeout:       cfg.Timeouts.Idle,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		zl.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case sig := <-done:
		zl.Info("Shutdown signal received", zap.Stringer("signal", sig))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Graceful shutdown failed", zap.Error(err))
		_ = srv.Close()
	}
	zl.Info("Server stopped")
	return nil
}
