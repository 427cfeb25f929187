package cli

import (
	"context"
	"net/http"

	"github.com/Udit004/alumni-networking-sub003/src/delivery"
	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/notifications"
	"go.uber.org/zap"
)

// session is a coordinator plus the resources it was built from
type session struct {
	coordinator *delivery.Coordinator
	config      *delivery.FileConfig
	closers     []func(context.Context) error
}

// openSession loads the config file and wires hints and the optional fallback store
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	if opts.User == "" {
		return nil, NewExitError(ExitCommandError, "--user is required")
	}
	if opts.Verbose {
		if err := lib.InitLogger("development"); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to initialize logger", err)
		}
	}

	cfg, err := delivery.LoadFileConfig(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	s := &session{config: cfg}
	options := cfg.Options()

	if cfg.HintsPath != "" {
		db, err := lib.ConnectSQLite(cfg.HintsPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open hints database", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open hints database", err)
		}
		s.closers = append(s.closers, func(context.Context) error { return sqlDB.Close() })
		hints, err := delivery.NewGormHintStore(db)
		if err != nil {
			s.release()
			return nil, WrapExitError(ExitCommandError, "failed to migrate hints database", err)
		}
		options.Hints = hints
	} else {
		options.Hints = delivery.NewMemoryHintStore()
	}

	if cfg.Fallback.MongoURI != "" {
		client, db, err := lib.ConnectMongo(ctx, cfg.Fallback.MongoURI, cfg.Fallback.Database)
		if err != nil {
			// the REST endpoints may still answer
			lib.Log().Warn("Fallback store unavailable", zap.Error(err))
		} else {
			s.closers = append(s.closers, client.Disconnect)
			options.Fallback = notifications.NewMongoStore(db)
		}
	}

	endpoints := cfg.EndpointSet(opts.Token, &http.Client{})
	s.coordinator = delivery.NewCoordinator(opts.User, endpoints, options)
	return s, nil
}

func (s *session) Close() {
	s.coordinator.Stop()
	s.release()
	lib.SyncLogger()
}

// release runs the closers in reverse order, once
func (s *session) release() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i](context.Background())
	}
	s.closers = nil
}
