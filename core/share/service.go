// Package share manages public links to single catalog records.
package share

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"tunevault/core/apperr"
	"tunevault/logger"
	"tunevault/model"
	"tunevault/repository"
	"tunevault/storage"

	"github.com/google/uuid"
)

// MaxExpiry caps how long a link may live.
const MaxExpiry = 365 * 24 * time.Hour

// Shared is what an anonymous visitor of a link sees.
type Shared struct {
	ShareID       string             `json:"shareId"`
	AllowDownload bool               `json:"allowDownload"`
	ExpiresAt     *time.Time         `json:"expiresAt,omitempty"`
	Record        model.PublicRecord `json:"record"`
}

// Download is an open audio stream for a shared record.
type Download struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	Filename    string
}

// Service manages share links.
type Service struct {
	links     repository.ShareRepository
	records   repository.RecordRepository
	artifacts storage.ArtifactStore
	now       func() time.Time
}

// NewService creates the sharing service.
func NewService(links repository.ShareRepository, records repository.RecordRepository, artifacts storage.ArtifactStore) *Service {
	return &Service{links: links, records: records, artifacts: artifacts, now: time.Now}
}

// Create shares an owned record. expiresIn <= 0 means the link never expires.
func (s *Service) Create(ctx context.Context, ownerID, recordID int64, allowDownload bool, expiresIn time.Duration) (*model.ShareLink, error) {
	if expiresIn > MaxExpiry {
		return nil, apperr.Validation("expiry too far in the future")
	}
	if _, err := s.records.GetByID(ctx, recordID, ownerID); err != nil {
		return nil, err
	}
	link := &model.ShareLink{
		ID:            newToken(),
		RecordID:      recordID,
		OwnerID:       ownerID,
		AllowDownload: allowDownload,
	}
	if expiresIn > 0 {
		at := s.now().Add(expiresIn).UTC()
		link.ExpiresAt = &at
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, err
	}
	logger.Info("share link created", logger.String("shareID", link.ID), logger.Int64("recordID", recordID))
	return link, nil
}

// List returns the owner's links, newest first.
func (s *Service) List(ctx context.Context, ownerID int64) ([]model.ShareLink, error) {
	return s.links.ListByOwner(ctx, ownerID)
}

// Revoke deletes an owned link.
func (s *Service) Revoke(ctx context.Context, ownerID int64, shareID string) error {
	return s.links.Delete(ctx, shareID, ownerID)
}

// Resolve loads a live link and its record, counting the access.
// Unknown and expired links are both apperr.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, shareID string) (*Shared, error) {
	link, rec, err := s.lookup(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if err := s.links.IncrementAccess(ctx, link.ID); err != nil {
		logger.Warn("share access not counted", logger.String("shareID", link.ID), logger.ErrorField(err))
	}
	return &Shared{
		ShareID:       link.ID,
		AllowDownload: link.AllowDownload,
		ExpiresAt:     link.ExpiresAt,
		Record:        rec.Public(),
	}, nil
}

// Open streams the shared audio. Links without download permission are
// apperr.ErrForbidden. The caller closes Body.
func (s *Service) Open(ctx context.Context, shareID string) (*Download, error) {
	link, rec, err := s.lookup(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if !link.AllowDownload {
		return nil, apperr.ErrForbidden
	}
	body, info, err := s.artifacts.Open(ctx, rec.FilePath)
	if err != nil {
		return nil, err
	}
	if err := s.links.IncrementAccess(ctx, link.ID); err != nil {
		logger.Warn("share access not counted", logger.String("shareID", link.ID), logger.ErrorField(err))
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Download{
		Body:        body,
		Size:        info.Size,
		ContentType: contentType,
		Filename:    rec.OriginalFilename,
	}, nil
}

func (s *Service) lookup(ctx context.Context, shareID string) (*model.ShareLink, *model.Record, error) {
	if !validToken(shareID) {
		return nil, nil, apperr.ErrNotFound
	}
	link, err := s.links.GetByID(ctx, shareID)
	if err != nil {
		return nil, nil, err
	}
	if link.Expired(s.now()) {
		return nil, nil, apperr.ErrNotFound
	}
	rec, err := s.records.GetAnyOwner(ctx, link.RecordID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, err
	}
	return link, rec, nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func validToken(id string) bool {
	if len(id) != 32 {
		return false
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
