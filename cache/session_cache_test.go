package cache

import (
	"context"
	"os"
	"strings"
	"testing"

	"Decibel/model"

	"github.com/go-redis/redis/v8"
)

func TestMemberEncoding(t *testing.T) {
	serialized := model.NewFileTrack("/a b.mp3").Serialize()
	m := encodeMember(12, serialized)

	got, err := decodeMember(m)
	if err != nil {
		t.Fatalf("decodeMember: %v", err)
	}
	if got != serialized {
		t.Errorf("decodeMember() = %q, want %q", got, serialized)
	}

	for _, bad := range []string{"nospace", "x 0 %2Fa"} {
		if _, err := decodeMember(bad); err == nil {
			t.Errorf("decodeMember(%q) should fail", bad)
		}
	}
}

func TestDecodeSessionRemapsCurrent(t *testing.T) {
	a := model.NewFileTrack("/a").Serialize()
	b := model.NewFileTrack("/b").Serialize()
	members := []string{
		encodeMember(0, a),
		encodeMember(1, "broken"),
		encodeMember(2, b),
	}

	s := decodeSession(members, 2)
	if len(s.Tracks) != 2 || s.Current != 1 {
		t.Fatalf("session = %d tracks, current %d", len(s.Tracks), s.Current)
	}
	if s.Tracks[1].Path() != "/b" {
		t.Errorf("track 1 = %s", s.Tracks[1].Path())
	}

	if s := decodeSession(members, 1); s.Current != -1 {
		t.Errorf("current on a broken member should be dropped, got %d", s.Current)
	}
}

func TestSessionKeysShareNamespace(t *testing.T) {
	for _, key := range []string{GetSessionKey("work"), GetSessionMetaKey("work"), GetSessionProbeKey("work")} {
		if !strings.HasPrefix(key, "decibel:session:work:") {
			t.Errorf("key %q outside the session namespace", key)
		}
	}
	if GetSessionKey("a") == GetSessionProbeKey("a") {
		t.Errorf("probe key collides with the tracks key")
	}
	if NewRedisSessionStore(nil, "", 0).Name() != "default" {
		t.Errorf("empty session name should fall back to default")
	}
}

// TestRedisSessionStore needs a server, set DECIBEL_TEST_REDIS=host:port to run it.
func TestRedisSessionStore(t *testing.T) {
	addr := os.Getenv("DECIBEL_TEST_REDIS")
	if addr == "" {
		t.Skip("DECIBEL_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	store := NewRedisSessionStore(client, "test", 0)
	defer store.ClearSession(ctx)

	dup := model.NewFileTrack("/dup.ogg")
	session := &model.Session{Tracks: []*model.Track{dup, dup, model.NewFileTrack("/x.ogg")}, Current: 1}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := store.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(got.Tracks) != 3 || got.Current != 1 {
		t.Errorf("loaded %d tracks, current %d", len(got.Tracks), got.Current)
	}

	saved, err := store.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if saved != 3 {
		t.Errorf("Check() = %d saved tracks, want 3", saved)
	}
	if n, _ := client.Exists(ctx, GetSessionProbeKey("test")).Result(); n != 0 {
		t.Errorf("probe key left behind")
	}
}
