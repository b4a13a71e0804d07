package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a versioned update matched no row
var ErrVersionConflict = errors.New("version conflict")

// Store bundles the repositories that share one connection or transaction
type Store struct {
	db        *gorm.DB
	Rooms     RoomRepository
	Stages    StageRepository
	Templates TemplateStore
	Instances FFEInstanceRepository
	Items     FFEItemRepository
}

// NewStore creates repositories bound to db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Rooms:     NewRoomRepository(db),
		Stages:    NewStageRepository(db),
		Templates: NewTemplateStore(db),
		Instances: NewFFEInstanceRepository(db),
		Items:     NewFFEItemRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single database transaction.
// Any error returned by fn, or a cancelled ctx, rolls the whole unit back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
