package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"room-ffe-api/internal/domain"
)

// TemplateStore is the read-only source of organization-scoped FFE templates
type TemplateStore interface {
	FindTemplate(ctx context.Context, orgID, templateID uuid.UUID) (*domain.FFETemplate, error)
}

type templateStoreImpl struct {
	db *gorm.DB
}

// NewTemplateStore creates a new instance of TemplateStore
func NewTemplateStore(db *gorm.DB) TemplateStore {
	return &templateStoreImpl{db: db}
}

func orderedByDisplay(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC").Order("created_at ASC").Order("id ASC")
}

// FindTemplate loads a template of the organization with sections and items in display order
func (r *templateStoreImpl) FindTemplate(ctx context.Context, orgID, templateID uuid.UUID) (*domain.FFETemplate, error) {
	var template domain.FFETemplate
	if err := r.db.WithContext(ctx).
		Preload("Sections", orderedByDisplay).
		Preload("Sections.Items", orderedByDisplay).
		Where("id = ? AND organization_id = ?", templateID, orgID).
		First(&template).Error; err != nil {
		return nil, err
	}
	return &template, nil
}
