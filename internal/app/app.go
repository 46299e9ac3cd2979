// Package app assembles the storage backends and domain services shared by
// the API server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/assignment"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/cloudinary"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/config"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/group"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/poll"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/queue"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/relay"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/store"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

// Stack is a fully wired set of services.
type Stack struct {
	DB    *store.DB    // nil with the memory store backend
	Redis *store.Redis // nil unless the redis queue backend is used
	NATS  *nats.Conn   // nil unless the nats queue backend is used
	Jobs  queue.Queue

	Issuer      *auth.Issuer
	Files       upload.Store
	LocalFiles  *upload.LocalStore // nil when uploads go to Cloudinary
	Hub         *relay.Hub
	Users       *user.Service
	Groups      *group.Service
	Messages    *message.Service
	Assignments *assignment.Service
	Polls       *poll.Service

	logger *slog.Logger
}

// OpenStore connects the configured database backend and migrates it when
// AUTO_MIGRATE is set. It returns nil for the memory backend.
func OpenStore(ctx context.Context, cfg config.App, logger *slog.Logger) (*store.DB, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		return nil, nil
	case "postgres", "":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("schema migrated")
	}
	return db, nil
}

// Open builds the whole service graph from cfg.
func Open(ctx context.Context, cfg config.App, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stack{logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	db, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.DB = db

	if s.Jobs, err = s.openQueue(cfg); err != nil {
		return nil, err
	}
	if err := s.openFiles(cfg); err != nil {
		return nil, err
	}

	s.Issuer = auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)

	var (
		userRepo       user.Repository       = user.NewMemoryRepository()
		groupRepo      group.Repository      = group.NewMemoryRepository()
		messageRepo    message.Repository    = message.NewMemoryRepository()
		assignmentRepo assignment.Repository = assignment.NewMemoryRepository()
		pollRepo       poll.Repository       = poll.NewMemoryRepository()
	)
	if db != nil {
		userRepo = user.NewPostgresRepository(db.Client)
		groupRepo = group.NewPostgresRepository(db.Client)
		messageRepo = message.NewPostgresRepository(db.Client)
		assignmentRepo = assignment.NewPostgresRepository(db.Client)
		pollRepo = poll.NewPostgresRepository(db.Client)
	}

	s.Users = user.NewService(userRepo, s.Issuer, logger)
	s.Groups = group.NewService(groupRepo, s.Users, logger)
	s.Hub = relay.NewHub(s.Groups, logger)
	s.Messages = message.NewService(messageRepo, s.Groups, s.Users, s.Files, logger, message.WithPublisher(s.Hub))
	s.Assignments = assignment.NewService(assignmentRepo, s.Groups, s.Users, s.Files, s.Messages, logger)
	s.Polls = poll.NewService(pollRepo, s.Groups, s.Users, s.Messages, logger)
	s.Groups.AttachCounters(s.Messages, s.Assignments, s.Polls)
	s.Messages.AttachReferences(s.Assignments, s.Polls)

	ok = true
	return s, nil
}

// OpenQueue connects only the job queue, for processes that consume jobs.
func OpenQueue(cfg config.App, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stack{logger: logger}
	q, err := s.openQueue(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Jobs = q
	return s, nil
}

func (s *Stack) openQueue(cfg config.App) (queue.Queue, error) {
	switch cfg.QueueBackend {
	case "memory":
		return queue.NewInMemory(64), nil
	case "nats":
		conn, err := nats.Connect(cfg.NATSURL, nats.Name("classroom"), nats.MaxReconnects(-1))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		s.NATS = conn
		return queue.NewNATSQueue(conn, cfg.QueueKey), nil
	case "redis", "":
		s.Redis = store.NewRedis(cfg.RedisAddr)
		return queue.NewRedisQueue(s.Redis.Client, cfg.QueueKey), nil
	default:
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}
}

func (s *Stack) openFiles(cfg config.App) error {
	switch cfg.UploadBackend {
	case "cloudinary":
		if !cfg.CloudinaryConfigured() {
			return errors.New("UPLOAD_BACKEND=cloudinary needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
		}
		client := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		s.Files = &upload.CloudinaryStore{Client: client, MaxBytes: cfg.MaxUploadBytes}
		s.logger.Info("uploads stored in cloudinary", "cloud", cfg.CloudinaryCloudName)
		return nil
	case "local", "":
		local, err := upload.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes, s.Jobs, s.logger)
		if err != nil {
			return err
		}
		s.Files, s.LocalFiles = local, local
		return nil
	default:
		return fmt.Errorf("unknown UPLOAD_BACKEND %q", cfg.UploadBackend)
	}
}

// Close releases every connection the stack opened.
func (s *Stack) Close() {
	if s.NATS != nil {
		if err := s.NATS.Drain(); err != nil {
			s.logger.Warn("nats drain failed", "error", err)
		}
	}
	if err := s.Redis.Close(); err != nil {
		s.logger.Warn("redis close failed", "error", err)
	}
	if err := s.DB.Close(); err != nil {
		s.logger.Warn("db close failed", "error", err)
	}
}
