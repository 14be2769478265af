package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"guildbot/internal/config"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		PoolSize:     4,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "guildbot:",
	}
	store, err := OpenRedis(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	if _, err := store.Load(ctx, "activity_data.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load missing = %v, want ErrNotFound", err)
	}
	if err := store.Save(ctx, "activity_data.json", []byte(`{"voice_times":{}}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("guildbot:activity_data.json") {
		t.Error("key was not written under the configured prefix")
	}
	got, err := store.Load(ctx, "activity_data.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"voice_times":{}}` {
		t.Errorf("Load = %q", got)
	}
}

func TestRedisStoreList(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	for _, key := range []string{
		"weekly_backup/weekly_data_2_01_01_2024.json",
		"weekly_backup/weekly_data_1_25_12_2023.json",
		"weekly_data.json",
	} {
		if err := store.Save(ctx, key, []byte("{}")); err != nil {
			t.Fatalf("Save(%q): %v", key, err)
		}
	}
	// Unprefixed keys belong to someone else.
	if err := mr.Set("weekly_backup/weekly_data_9_01_01_2020.json", "{}"); err != nil {
		t.Fatalf("miniredis Set: %v", err)
	}

	keys, err := store.List(ctx, "weekly_backup/weekly_data_")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{
		"weekly_backup/weekly_data_1_25_12_2023.json",
		"weekly_backup/weekly_data_2_01_01_2024.json",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List = %v, want %v", keys, want)
	}
}

func TestOpenRedisInvalidTimeout(t *testing.T) {
	_, err := OpenRedis(config.RedisConfig{Host: "localhost:0", DialTimeout: "soon"})
	if err == nil {
		t.Fatal("OpenRedis accepted an invalid dial timeout")
	}
}
