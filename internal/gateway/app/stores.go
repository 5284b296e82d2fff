package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	blobcache "docbridge/internal/cache/blob"
	"docbridge/internal/gateway/config"
	blobrepo "docbridge/internal/gateway/repository/blob"
)

// openStore builds the configured blob backend and wraps it in the read
// cache when enabled. The returned closer releases backend resources.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (blobrepo.Store, io.Closer, error) {
	origin, closer, err := openOrigin(ctx, cfg.Storage, log)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Cache.Enabled {
		return origin, closer, nil
	}
	cacheCfg := blobcache.DefaultCacheConfig()
	if cfg.Cache.TTL > 0 {
		cacheCfg.BlobTTL = cfg.Cache.TTL
	}
	if cfg.Cache.MaxEntries > 0 {
		cacheCfg.BlobMaxEntries = cfg.Cache.MaxEntries
	}
	log.Info().Dur("ttl", cacheCfg.BlobTTL).Int("entries", cacheCfg.BlobMaxEntries).Msg("blob cache enabled")
	return blobcache.NewCachedStore(origin, cacheCfg), closer, nil
}

func openOrigin(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (blobrepo.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendS3:
		store, err := blobrepo.NewS3Store(blobrepo.S3Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize s3 store: %w", err)
		}
		log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("blob store: s3")
		return store, nopCloser{}, nil
	case config.BackendPostgres:
		store, err := blobrepo.OpenPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		log.Info().Msg("blob store: postgres")
		return store, store, nil
	case config.BackendDisk:
		log.Info().Str("root", cfg.DiskRoot).Msg("blob store: disk")
		return blobrepo.NewDiskStore(cfg.DiskRoot), nopCloser{}, nil
	case config.BackendMemory:
		log.Warn().Msg("blob store: in-memory; documents are lost on restart")
		return blobrepo.NewMemoryStore(), nopCloser{}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
