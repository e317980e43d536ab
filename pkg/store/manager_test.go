package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips the test when none
// is running. Container-backed tests live in manager_integration_test.go.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

var testKey = Key{Revision: "wanikani1", Fingerprint: FingerprintToken("test-token")}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager_SaveAndGet(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	data := []byte("PK\x03\x04archive")
	if err := manager.Save(ctx, testKey, data, 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entry, err := manager.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if !bytes.Equal(entry.Data, data) {
		t.Errorf("Data mismatch: got %q, want %q", entry.Data, data)
	}
	if entry.Revision != "wanikani1" {
		t.Errorf("Revision = %q, want wanikani1", entry.Revision)
	}
	if entry.Size != len(data) {
		t.Errorf("Size = %d, want %d", entry.Size, len(data))
	}
	if entry.Age() > time.Minute {
		t.Errorf("Age() = %v, want recent", entry.Age())
	}
}

func TestManager_Get_NotFound(t *testing.T) {
	manager := NewManager(setupTestRedis(t))

	_, err := manager.Get(context.Background(), Key{Revision: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not json"},
		{"size mismatch", `{"data":"UEs=","revision":"wanikani1","size":99}`},
		{"empty data", `{"revision":"wanikani1","size":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.Set(ctx, testKey.String(), tt.raw, 0).Err(); err != nil {
				t.Fatalf("seed: %v", err)
			}

			_, err := manager.Get(ctx, testKey)
			if !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("Expected ErrInvalidEntry, got %v", err)
			}
		})
	}
}

func TestManager_Save_Validation(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	if err := manager.Save(ctx, testKey, nil, time.Minute); err == nil {
		t.Error("Save with empty data should return error")
	}
	if err := manager.Save(ctx, testKey, []byte("PK"), -time.Second); err == nil {
		t.Error("Save with negative ttl should return error")
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	if err := manager.Save(ctx, testKey, []byte("PK"), 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := manager.Delete(ctx, testKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := manager.Get(ctx, testKey)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after Delete, got %v", err)
	}

	// Deleting again is fine.
	if err := manager.Delete(ctx, testKey); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func TestManager_TTL(t *testing.T) {
	manager := NewManager(setupTestRedis(t))
	ctx := context.Background()

	if _, err := manager.TTL(ctx, testKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound before Save, got %v", err)
	}

	if err := manager.Save(ctx, testKey, []byte("PK"), 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ttl, err := manager.TTL(ctx, testKey)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 9*time.Minute || ttl > 10*time.Minute {
		t.Errorf("TTL = %v, want about 10m", ttl)
	}

	if err := manager.Save(ctx, testKey, []byte("PK"), 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ttl, err = manager.TTL(ctx, testKey)
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != 0 {
		t.Errorf("TTL = %v, want 0 for a persistent archive", ttl)
	}
}
