package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nebari-dev/docshelf/internal/apperr"
	"github.com/nebari-dev/docshelf/internal/audit"
	"github.com/nebari-dev/docshelf/internal/blob"
	"github.com/nebari-dev/docshelf/internal/metrics"
	"github.com/nebari-dev/docshelf/internal/models"
	"github.com/nebari-dev/docshelf/internal/rbac"
	"github.com/nebari-dev/docshelf/internal/store"
)

// DocumentService is the ownership-scoped document resource. Every read or
// write of a single document takes the actor explicitly and is checked
// against the ownership policy after the document was fetched.
type DocumentService struct {
	docs    store.DocumentStore
	blobs   blob.Store
	audit   *audit.Logger
	metrics *metrics.Metrics
}

// NewDocumentService creates a DocumentService. auditLog and m may be nil.
func NewDocumentService(docs store.DocumentStore, blobs blob.Store, auditLog *audit.Logger, m *metrics.Metrics) *DocumentService {
	return &DocumentService{docs: docs, blobs: blobs, audit: auditLog, metrics: m}
}

// Create stores a document owned by actorID.
func (s *DocumentService) Create(ctx context.Context, actorID uint, in CreateDocumentInput) (*models.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.InvalidInput("title is required")
	}

	doc := &models.Document{
		Title:   title,
		Content: in.Content,
		UserID:  actorID,
	}

	if in.File != nil {
		ref, err := s.blobs.Put(ctx, in.File.Filename, in.File.Body, in.File.ContentType)
		if err != nil {
			return nil, apperr.Internal("store uploaded file", err)
		}
		doc.FilePath = ref
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		s.discard(ctx, doc.FilePath)
		if errors.Is(err, store.ErrReferenced) {
			return nil, apperr.Unauthenticated("user not found")
		}
		return nil, apperr.Internal("create document", err)
	}

	s.audit.Record(ctx, audit.Actor(actorID), audit.ActionCreateDocument, documentResource(doc.ID), map[string]interface{}{
		"title":    doc.Title,
		"has_file": doc.FilePath != "",
	})
	return doc, nil
}

// List returns every document without ownership filtering. Access to the
// listing is restricted by the role gate.
func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list documents", err)
	}
	return docs, nil
}

// Get returns a document the actor may access.
func (s *DocumentService) Get(ctx context.Context, id, actorID uint, actorRole models.Role) (*models.Document, error) {
	return s.load(ctx, id, actorID, actorRole)
}

// Update applies the non-nil fields of patch. The owner never changes.
func (s *DocumentService) Update(ctx context.Context, id uint, patch DocumentPatch, actorID uint, actorRole models.Role) (*models.Document, error) {
	doc, err := s.load(ctx, id, actorID, actorRole)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.InvalidInput("title must not be empty")
		}
		doc.Title = title
	}
	if patch.Content != nil {
		doc.Content = *patch.Content
	}

	previous := doc.FilePath
	if patch.File != nil {
		ref, err := s.blobs.Put(ctx, patch.File.Filename, patch.File.Body, patch.File.ContentType)
		if err != nil {
			return nil, apperr.Internal("store uploaded file", err)
		}
		doc.FilePath = ref
	}

	if err := s.docs.Save(ctx, doc); err != nil {
		if doc.FilePath != previous {
			s.discard(ctx, doc.FilePath)
		}
		return nil, apperr.Internal("update document", err)
	}
	if doc.FilePath != previous {
		s.discard(ctx, previous)
	}

	s.audit.Record(ctx, audit.Actor(actorID), audit.ActionUpdateDocument, documentResource(doc.ID), map[string]interface{}{
		"replaced_file": doc.FilePath != previous,
	})
	return doc, nil
}

// Delete removes a document and its file. Deleting a missing document fails
// with NotFound.
func (s *DocumentService) Delete(ctx context.Context, id, actorID uint, actorRole models.Role) error {
	doc, err := s.load(ctx, id, actorID, actorRole)
	if err != nil {
		return err
	}

	if err := s.docs.Delete(ctx, doc); err != nil {
		return fromStore(err, "document not found")
	}
	s.discard(ctx, doc.FilePath)

	s.audit.Record(ctx, audit.Actor(actorID), audit.ActionDeleteDocument, documentResource(doc.ID), map[string]interface{}{
		"title": doc.Title,
	})
	return nil
}

// load fetches a document and applies the ownership policy. A missing
// document is NotFound, never Forbidden.
func (s *DocumentService) load(ctx context.Context, id, actorID uint, actorRole models.Role) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "document not found")
	}
	if err := rbac.CheckOwnership(actorID, actorRole, doc.UserID); err != nil {
		slog.Warn("Document access denied", "document_id", id, "actor_id", actorID, "role", actorRole)
		s.metrics.AccessDenied("ownership")
		return nil, err
	}
	return doc, nil
}

// discard removes a stored file, logging failures.
func (s *DocumentService) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.blobs.Delete(ctx, ref); err != nil {
		slog.Warn("Failed to remove stored file", "ref", ref, "error", err)
	}
}

func documentResource(id uint) string {
	return fmt.Sprintf("document:%d", id)
}
