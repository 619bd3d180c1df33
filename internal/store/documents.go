package store

import (
	"context"

	"github.com/nebari-dev/docshelf/internal/models"
	"gorm.io/gorm"
)

// DocumentStore persists document records.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id uint) (*models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	Save(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, doc *models.Document) error
	// CountByOwner returns how many documents userID owns.
	CountByOwner(ctx context.Context, userID uint) (int64, error)
}

// GormDocumentStore implements DocumentStore on a GORM database.
type GormDocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore creates a GORM-backed DocumentStore.
func NewDocumentStore(db *gorm.DB) *GormDocumentStore {
	return &GormDocumentStore{db: db}
}

func (s *GormDocumentStore) Create(ctx context.Context, doc *models.Document) error {
	return translate(s.db.WithContext(ctx).Create(doc).Error)
}

func (s *GormDocumentStore) FindByID(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

func (s *GormDocumentStore) List(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	if err := s.db.WithContext(ctx).Order("id").Find(&docs).Error; err != nil {
		return nil, translate(err)
	}
	return docs, nil
}

func (s *GormDocumentStore) Save(ctx context.Context, doc *models.Document) error {
	return translate(s.db.WithContext(ctx).Save(doc).Error)
}

func (s *GormDocumentStore) Delete(ctx context.Context, doc *models.Document) error {
	result := s.db.WithContext(ctx).Delete(&models.Document{}, doc.ID)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormDocumentStore) CountByOwner(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Document{}).Where("user_id = ?", userID).Count(&count).Error
	return count, translate(err)
}
