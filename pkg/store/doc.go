// Package store persists finished dictionary archives in Redis.
//
// A build walks every page of the subjects collection, so repeated builds
// for the same account are expensive. The store keeps the serialized
// archive under a key derived from the manifest revision and a fingerprint
// of the API token; the token itself is never written.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := store.NewManager(redisClient)
//
//	key := store.Key{
//		Revision:    archive.DefaultManifest.Revision,
//		Fingerprint: store.FingerprintToken(token),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, store.ErrNotFound) {
//		data, err := loader.LoadDictionary(ctx, cfg, nil)
//		// ...
//		_ = manager.Save(ctx, key, data, 24*time.Hour)
//	}
//
// # Metrics
//
//   - wanikani_store_hits_total - Archives served from Redis
//   - wanikani_store_misses_total - Lookups without a stored archive
//   - wanikani_store_errors_total{operation} - Redis or decode failures
package store
