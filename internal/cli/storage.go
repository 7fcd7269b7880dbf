package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	outfit "github.com/Mallikarjun30/OutfitSuggestion"
	"github.com/Mallikarjun30/OutfitSuggestion/internal/config"
)

// openStorage builds the session store selected by session.backend.
func openStorage(ctx context.Context, c *config.Config, logger *slog.Logger) (outfit.Storage, func(), error) {
	noop := func() {}

	switch c.Session.Backend {
	case config.BackendMemory:
		return outfit.NewMemoryStorage(), noop, nil

	case config.BackendFile:
		fs, err := openFileStorage(c.SessionPath(), logger)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil

	case config.BackendEncrypted:
		fs, err := openFileStorage(c.SessionPath(), logger)
		if err != nil {
			return nil, nil, err
		}
		es, err := outfit.NewEncryptedStorage(fs, c.Session.Passphrase)
		if err != nil {
			return nil, nil, err
		}
		return es, noop, nil

	case config.BackendSQLite:
		ss, err := outfit.OpenSQLiteStorage(c.SessionPath())
		if err != nil {
			return nil, nil, err
		}
		return ss, func() {
			if err := ss.Close(); err != nil {
				logger.Warn("failed to close session database", slog.String("error", err.Error()))
			}
		}, nil

	case config.BackendRedis:
		rc, err := outfit.DialRedis(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		opts := []outfit.RedisOption{outfit.WithRedisTTL(c.Redis.TTL)}
		if c.Redis.Prefix != "" {
			opts = append(opts, outfit.WithRedisPrefix(c.Redis.Prefix))
		}
		return outfit.NewRedisStorage(rc, opts...), func() { _ = rc.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown session backend %q", c.Session.Backend)
}

// openFileStorage opens the session file. A corrupted file is moved aside
// and replaced with an empty store, which leaves the user signed out.
func openFileStorage(path string, logger *slog.Logger) (*outfit.FileStorage, error) {
	fs, err := outfit.NewFileStorage(path)
	if err == nil {
		return fs, nil
	}
	if !errors.Is(err, outfit.ErrStoreCorrupted) {
		return nil, err
	}

	aside := path + ".corrupt"
	logger.Warn("session file is corrupted, starting signed out",
		slog.String("path", path),
		slog.String("moved_to", aside),
		slog.String("error", err.Error()),
	)
	if err := os.Rename(path, aside); err != nil {
		return nil, fmt.Errorf("failed to move corrupted session file: %w", err)
	}
	return outfit.NewFileStorage(path)
}
