package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/artifact"
	"github.com/starford/folio/internal/deploy"
	"github.com/starford/folio/internal/draft"
	"github.com/starford/folio/internal/images"
	"github.com/starford/folio/internal/notestore"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/publish"
	"github.com/starford/folio/internal/storage"
)

// components are the collaborators shared by every entry point.
type components struct {
	store   notestore.Store
	service *noteservice.Service
	engine  *publish.Engine
	images  images.Store
}

// Close waits for in-flight deploy notifications and closes the store.
func (c *components) Close() error {
	c.engine.Close()
	return c.store.Close()
}

// buildComponents wires the note store, lifecycle service and publish engine
// from cfg. events receives lifecycle events from both the service and the
// engine and may be nil.
func buildComponents(cfg *Config, logger *slog.Logger, events func(kind, id string)) (*components, error) {
	store, err := openStore(&cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Content.PostsDir, 0o755); err != nil {
		store.Close()
		return nil, fmt.Errorf("create posts dir: %w", err)
	}
	posts, err := storage.NewFS(cfg.Content.PostsDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init posts storage: %w", err)
	}

	imgs, err := openImages(&cfg.Images)
	if err != nil {
		store.Close()
		return nil, err
	}
	gen, err := openGenerator(&cfg.AI)
	if err != nil {
		store.Close()
		return nil, err
	}

	svcOpts := []noteservice.Option{
		noteservice.WithGenerator(gen),
		noteservice.WithLogger(logger),
	}
	engineOpts := []publish.Option{
		publish.WithImages(imgs),
		publish.WithNotifier(deploy.New(cfg.Deploy.HookURL, cfg.Deploy.Timeout)),
		publish.WithNotifyTimeout(cfg.Deploy.Timeout),
		publish.WithLogger(logger),
	}
	if events != nil {
		svcOpts = append(svcOpts, noteservice.WithEvents(events))
		engineOpts = append(engineOpts, publish.WithEvents(events))
	}

	svc := noteservice.New(store, svcOpts...)
	engine := publish.NewEngine(svc, artifact.NewFS(posts), engineOpts...)
	svc.SetRetractor(engine)

	logger.Info("Components ready",
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("posts_dir", cfg.Content.PostsDir),
		slog.Bool("images_enabled", cfg.Images.Enabled()),
		slog.Bool("ai_enabled", cfg.AI.Enabled()),
		slog.Bool("deploy_hook", cfg.Deploy.HookURL != ""))

	return &components{store: store, service: svc, engine: engine, images: imgs}, nil
}

func openStore(cfg *StoreConfig) (notestore.Store, error) {
	switch cfg.Driver {
	case StoreDriverFiles:
		if err := os.MkdirAll(cfg.NotesDir, 0o755); err != nil {
			return nil, fmt.Errorf("create notes dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.NotesDir)
		if err != nil {
			return nil, fmt.Errorf("init notes storage: %w", err)
		}
		return notestore.NewFiles(fs), nil
	default:
		db, err := notestore.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init note store: %w", err)
		}
		return db, nil
	}
}

func openImages(cfg *ImagesConfig) (images.Store, error) {
	if !cfg.Enabled() {
		return images.Disabled{}, nil
	}
	s3, err := images.NewS3(images.S3Options{
		Bucket:          cfg.Bucket,
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		PublicURL:       cfg.PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init images: %w", err)
	}
	return s3, nil
}

func openGenerator(cfg *AIConfig) (draft.Generator, error) {
	if !cfg.Enabled() {
		return draft.Disabled{}, nil
	}
	gen, err := draft.NewAnthropic(draft.Options{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
		BaseURL:   cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init draft generator: %w", err)
	}
	return gen, nil
}
