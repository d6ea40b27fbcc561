package repository

import (
	"context"
	"testing"

	"Decibel/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// every connection to :memory: is a new database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&model.Preference{}, &model.SessionTrack{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPrefsRoundTrip(t *testing.T) {
	repo := NewGormPrefsRepository(newTestDB(t))
	ctx := context.Background()

	var repeat bool
	found, err := repo.Get(ctx, "Tracklist", "repeat-status", &repeat)
	if err != nil || found {
		t.Fatalf("Get on empty store = (%v, %v), want (false, nil)", found, err)
	}

	if err := repo.Set(ctx, "Tracklist", "repeat-status", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	found, err = repo.Get(ctx, "Tracklist", "repeat-status", &repeat)
	if err != nil || !found || !repeat {
		t.Fatalf("Get = (%v, %v), value %v", found, err, repeat)
	}
}

func TestPrefsOverwriteAndList(t *testing.T) {
	repo := NewGormPrefsRepository(newTestDB(t))
	ctx := context.Background()

	folders := map[string]string{"Home": "/home/me"}
	if err := repo.Set(ctx, "FileExplorer", "media-folders", folders); err != nil {
		t.Fatalf("Set: %v", err)
	}
	folders["Music"] = "/srv/music"
	if err := repo.Set(ctx, "FileExplorer", "media-folders", folders); err != nil {
		t.Fatalf("second Set: %v", err)
	}
	if err := repo.Set(ctx, "FileExplorer", "show-hidden-files", false); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got map[string]string
	if _, err := repo.Get(ctx, "FileExplorer", "media-folders", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got["Music"] != "/srv/music" {
		t.Errorf("media-folders = %v", got)
	}

	all, err := repo.List(ctx, "FileExplorer")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all["show-hidden-files"] != "false" {
		t.Errorf("List() = %v", all)
	}

	if err := repo.Delete(ctx, "FileExplorer", "show-hidden-files"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var hidden bool
	if found, _ := repo.Get(ctx, "FileExplorer", "show-hidden-files", &hidden); found {
		t.Errorf("deleted preference still present")
	}
}

func TestSessionSaveLoad(t *testing.T) {
	repo := NewGormSessionRepository(newTestDB(t), "")
	ctx := context.Background()

	session, err := repo.LoadSession(ctx)
	if err != nil || session != nil {
		t.Fatalf("LoadSession on empty store = (%v, %v)", session, err)
	}

	a := model.NewFileTrack("/music/a b.flac")
	a.SetTitle("A & B")
	a.SetLength(61)
	b := model.NewFileTrack("/music/c.ogg")
	if err := repo.SaveSession(ctx, &model.Session{Tracks: []*model.Track{a, b}, Current: 1}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	// saving again replaces the previous content
	if err := repo.SaveSession(ctx, &model.Session{Tracks: []*model.Track{b, a}, Current: 1}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	session, err = repo.LoadSession(ctx)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(session.Tracks) != 2 || session.Current != 1 {
		t.Fatalf("session = %d tracks, current %d", len(session.Tracks), session.Current)
	}
	if session.Tracks[1].Title() != "A & B" || session.Tracks[1].Length() != 61 {
		t.Errorf("track 1 = %v", session.Tracks[1])
	}

	if err := repo.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if session, _ := repo.LoadSession(ctx); session != nil {
		t.Errorf("session still present after clear")
	}
}

func TestDecodeSessionSkipsBadRows(t *testing.T) {
	good := model.NewFileTrack("/x").Serialize()
	rows := []model.SessionTrack{
		{Position: 0, Serialized: "broken"},
		{Position: 1, Serialized: good, Current: true},
	}
	session := decodeSession(rows)
	if len(session.Tracks) != 1 || session.Current != 0 {
		t.Errorf("session = %d tracks, current %d", len(session.Tracks), session.Current)
	}
}
