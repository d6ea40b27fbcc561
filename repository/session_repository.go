package repository

import (
	"context"
	"fmt"

	"Decibel/model"

	"gorm.io/gorm"
)

// DefaultSession is the name of the tracklist saved on quit.
const DefaultSession = "default"

// SessionRepository saves and restores the tracklist across runs.
type SessionRepository interface {
	SaveSession(ctx context.Context, session *model.Session) error
	// LoadSession returns nil, nil when nothing was saved.
	LoadSession(ctx context.Context) (*model.Session, error)
	ClearSession(ctx context.Context) error
}

type gormSessionRepository struct {
	db   *gorm.DB
	name string
}

// NewGormSessionRepository 创建 GORM 会话仓库
func NewGormSessionRepository(db *gorm.DB, name string) SessionRepository {
	if name == "" {
		name = DefaultSession
	}
	return &gormSessionRepository{db: db, name: name}
}

// SaveSession 覆盖保存整个播放列表
func (r *gormSessionRepository) SaveSession(ctx context.Context, session *model.Session) error {
	rows := make([]model.SessionTrack, len(session.Tracks))
	for i, t := range session.Tracks {
		rows[i] = model.SessionTrack{
			Session:    r.name,
			Position:   i,
			Serialized: t.Serialize(),
			Current:    i == session.Current,
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session = ?", r.name).Delete(&model.SessionTrack{}).Error; err != nil {
			return fmt.Errorf("clear session %s: %w", r.name, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
			return fmt.Errorf("save session %s: %w", r.name, err)
		}
		return nil
	})
}

func (r *gormSessionRepository) LoadSession(ctx context.Context) (*model.Session, error) {
	var rows []model.SessionTrack
	err := r.db.WithContext(ctx).
		Where("session = ?", r.name).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", r.name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return decodeSession(rows), nil
}

func (r *gormSessionRepository) ClearSession(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("session = ?", r.name).Delete(&model.SessionTrack{}).Error
}

// decodeSession rebuilds a session from its rows. The current index is
// counted among the rows that decoded.
func decodeSession(rows []model.SessionTrack) *model.Session {
	session := &model.Session{Current: -1}
	for _, row := range rows {
		t := model.UnserializeAll([]string{row.Serialized})
		if len(t) == 0 {
			continue
		}
		if row.Current {
			session.Current = len(session.Tracks)
		}
		session.Tracks = append(session.Tracks, t[0])
	}
	return session
}
