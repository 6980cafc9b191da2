// Package ingest turns uploaded files into catalog records and manages the
// lifecycle of their artifacts.
//
// There is no transaction spanning the artifact store and the catalog store.
// Writes are ordered so a failure can leave an orphaned artifact but never a
// record pointing at a missing one: artifact first, record second, derived
// artifact references last. Orphans are removed by Reconciler.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"tunevault/cache"
	"tunevault/core/apperr"
	"tunevault/core/metadata"
	"tunevault/logger"
	"tunevault/metrics"
	"tunevault/model"
	"tunevault/repository"
	"tunevault/storage"

	"github.com/google/uuid"
)

// Artifact key prefixes.
const (
	AudioPrefix = "audio/"
	CoverPrefix = "covers/"
)

// Upload is a file received from a client and spooled to local disk.
type Upload struct {
	Path             string
	OriginalFilename string
	ContentType      string
	Size             int64
}

// FileHandle refers to an audio file already written to the artifact store.
// LocalPath is the spooled copy used for metadata extraction.
type FileHandle struct {
	Ref              string
	LocalPath        string
	OriginalFilename string
	StoredFilename   string
	Size             int64
	ContentType      string
}

// Pipeline runs uploads through extraction, persistence and artifact follow-up.
type Pipeline struct {
	records   repository.RecordRepository
	artifacts storage.ArtifactStore
	extractor metadata.Extractor
	cache     cache.CatalogCache
	now       func() time.Time
}

// NewPipeline creates an ingestion pipeline. A nil cache disables caching.
func NewPipeline(records repository.RecordRepository, artifacts storage.ArtifactStore, extractor metadata.Extractor, c cache.CatalogCache) *Pipeline {
	if c == nil {
		c = cache.Nop{}
	}
	return &Pipeline{
		records:   records,
		artifacts: artifacts,
		extractor: extractor,
		cache:     c,
		now:       time.Now,
	}
}

// Stage writes an upload to the artifact store.
func (p *Pipeline) Stage(ctx context.Context, up Upload, ownerID int64) (*FileHandle, error) {
	if up.Path == "" || up.Size <= 0 {
		return nil, apperr.ErrEmptyUpload
	}
	f, err := os.Open(up.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmptyUpload, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return nil, apperr.ErrEmptyUpload
	}

	ext := strings.ToLower(filepath.Ext(up.OriginalFilename))
	stored := fmt.Sprintf("%d-%s-%s%s", p.now().UnixMilli(), randomSuffix(), safeName(up.OriginalFilename), ext)
	key := fmt.Sprintf("%s%d/%s", AudioPrefix, ownerID, stored)

	ref, err := p.artifacts.Save(ctx, key, f, info.Size(), up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("save audio artifact: %w", err)
	}
	return &FileHandle{
		Ref:              ref,
		LocalPath:        up.Path,
		OriginalFilename: up.OriginalFilename,
		StoredFilename:   stored,
		Size:             info.Size(),
		ContentType:      up.ContentType,
	}, nil
}

// Ingest extracts metadata from a staged file and creates its record.
// User fields win over extracted values, which win over defaults.
func (p *Pipeline) Ingest(ctx context.Context, h FileHandle, fields Fields, ownerID int64) (*model.Record, error) {
	if err := fields.Validate(); err != nil {
		p.cleanup(ctx, "audio", h.Ref)
		metrics.IngestTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if h.Size <= 0 || h.Ref == "" {
		p.cleanup(ctx, "audio", h.Ref)
		metrics.IngestTotal.WithLabelValues("empty").Inc()
		return nil, apperr.ErrEmptyUpload
	}
	exists, err := p.artifacts.Exists(ctx, h.Ref)
	if err != nil {
		p.cleanup(ctx, "audio", h.Ref)
		metrics.IngestTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !exists {
		metrics.IngestTotal.WithLabelValues("empty").Inc()
		return nil, apperr.ErrEmptyUpload
	}

	extracted, err := p.extractor.Extract(ctx, h.LocalPath, h.OriginalFilename)
	if err != nil {
		p.cleanup(ctx, "audio", h.Ref)
		metrics.IngestTotal.WithLabelValues("empty").Inc()
		return nil, err
	}
	if extracted.Fallback {
		logger.Info("ingesting with fallback metadata",
			logger.String("file", h.OriginalFilename),
			logger.Int64("ownerID", ownerID))
	}

	rec := buildRecord(h, fields.normalized(), extracted, ownerID)
	if err := p.records.Create(ctx, rec); err != nil {
		p.cleanup(ctx, "audio", h.Ref)
		metrics.IngestTotal.WithLabelValues("persist_failed").Inc()
		return nil, fmt.Errorf("%w: %w", apperr.ErrPersistence, err)
	}

	if extracted.Artwork != nil {
		p.attachExtractedArtwork(ctx, rec, extracted.Artwork)
	}

	p.cache.Bump(ctx, ownerID)
	metrics.IngestTotal.WithLabelValues("ok").Inc()
	logger.Info("record ingested",
		logger.Int64("recordID", rec.ID),
		logger.Int64("ownerID", ownerID),
		logger.Bool("fallback", extracted.Fallback),
		logger.Bool("coverArt", rec.HasCoverArt()))
	return rec, nil
}

// attachExtractedArtwork never fails the ingestion.
func (p *Pipeline) attachExtractedArtwork(ctx context.Context, rec *model.Record, art *metadata.Artwork) {
	key := coverKey(rec.OwnerID, rec.ID, art.Ext)
	ref, err := p.artifacts.Save(ctx, key, bytes.NewReader(art.Data), int64(len(art.Data)), art.MIMEType)
	if err != nil {
		logger.Warn("embedded artwork not saved", logger.Int64("recordID", rec.ID), logger.ErrorField(err))
		return
	}
	if err := p.records.SetCoverArt(ctx, rec.ID, rec.OwnerID, &ref); err != nil {
		logger.Warn("embedded artwork not attached", logger.Int64("recordID", rec.ID), logger.ErrorField(err))
		p.cleanup(ctx, "cover", ref)
		return
	}
	rec.CoverArtPath = &ref
}

// AttachCoverArt replaces a record's cover. The old cover is only deleted
// after the record points at the new one.
func (p *Pipeline) AttachCoverArt(ctx context.Context, recordID, ownerID int64, up Upload) (*model.Record, error) {
	rec, err := p.records.GetByID(ctx, recordID, ownerID)
	if err != nil {
		return nil, err
	}
	if up.Path == "" || up.Size <= 0 {
		return nil, apperr.ErrEmptyUpload
	}
	ext, err := imageExt(up)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(up.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmptyUpload, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return nil, apperr.ErrEmptyUpload
	}

	ref, err := p.artifacts.Save(ctx, coverKey(ownerID, recordID, ext), f, info.Size(), up.ContentType)
	if err != nil {
		return nil, fmt.Errorf("save cover artifact: %w", err)
	}
	if err := p.records.SetCoverArt(ctx, recordID, ownerID, &ref); err != nil {
		p.cleanup(ctx, "cover", ref)
		return nil, err
	}

	if old := rec.CoverArtPath; old != nil && *old != "" && *old != ref {
		p.cleanup(ctx, "cover", *old)
	}
	rec.CoverArtPath = &ref
	p.cache.Bump(ctx, ownerID)
	return rec, nil
}

// UpdateFields edits metadata of an owned record and returns the new state.
func (p *Pipeline) UpdateFields(ctx context.Context, recordID, ownerID int64, fields Fields) (*model.Record, error) {
	updates, err := fields.updates()
	if err != nil {
		return nil, err
	}
	if err := p.records.Update(ctx, recordID, ownerID, updates); err != nil {
		return nil, err
	}
	p.cache.Bump(ctx, ownerID)
	return p.records.GetByID(ctx, recordID, ownerID)
}

// Delete removes a record, then its artifacts. Artifact deletes are
// best-effort; leftovers are collected by Reconciler.
func (p *Pipeline) Delete(ctx context.Context, recordID, ownerID int64) error {
	rec, err := p.records.GetByID(ctx, recordID, ownerID)
	if err != nil {
		return err
	}
	if err := p.records.Delete(ctx, recordID, ownerID); err != nil {
		return err
	}
	p.cleanup(ctx, "audio", rec.FilePath)
	if rec.HasCoverArt() {
		p.cleanup(ctx, "cover", *rec.CoverArtPath)
	}
	p.cache.Bump(ctx, ownerID)
	logger.Info("record deleted", logger.Int64("recordID", recordID), logger.Int64("ownerID", ownerID))
	return nil
}

// Get loads one owned record.
func (p *Pipeline) Get(ctx context.Context, recordID, ownerID int64) (*model.Record, error) {
	return p.records.GetByID(ctx, recordID, ownerID)
}

// List pages through an owner's catalog, newest first.
func (p *Pipeline) List(ctx context.Context, ownerID int64, page, limit int) (model.Page, error) {
	records, total, err := p.records.ListByOwner(ctx, ownerID, (page-1)*limit, limit)
	if err != nil {
		return model.Page{}, err
	}
	return model.NewPage(records, total, page, limit), nil
}

// cleanup deletes an artifact and only logs failures, so the caller's
// original error is never replaced.
func (p *Pipeline) cleanup(ctx context.Context, kind, ref string) {
	if ref == "" {
		return
	}
	// The request context may already be cancelled; cleanup still runs.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	_, err := p.artifacts.Delete(ctx, ref)
	metrics.Cleanup(kind, err)
	if err != nil {
		logger.Warn("artifact cleanup failed", logger.String("kind", kind), logger.String("ref", ref), logger.ErrorField(err))
	}
}

func buildRecord(h FileHandle, f Fields, ex *metadata.Result, ownerID int64) *model.Record {
	composers := f.Composers
	if len(composers) == 0 {
		composers = ex.Composers
	}
	if composers == nil {
		composers = []string{}
	}

	duration := ex.Duration
	if duration != nil && *duration < 0 {
		duration = nil
	}

	return &model.Record{
		Filename:         h.StoredFilename,
		OriginalFilename: h.OriginalFilename,

		Title:       Coalesce(deref(f.Title), ex.Title, ex.FallbackTitle, metadata.UntitledTitle),
		Artist:      Coalesce(deref(f.Artist), ex.Artist, model.UnknownArtist),
		Album:       Coalesce(deref(f.Album), ex.Album, model.UnknownAlbum),
		AlbumArtist: Coalesce(f.AlbumArtist, ex.AlbumArtist),
		Genre:       Coalesce(f.Genre, ex.Genre),
		Year:        Coalesce(f.Year, ex.Year),
		TrackNumber: Coalesce(f.TrackNumber, ex.TrackNumber),
		TrackTotal:  ex.TrackTotal,
		DiscNumber:  Coalesce(f.DiscNumber, ex.DiscNumber),
		DiscTotal:   ex.DiscTotal,
		Composers:   model.StringList(composers),
		Comment:     Coalesce(f.Comment, ex.Comment),
		Mood:        Coalesce(f.Mood, ex.Mood),
		Key:         Coalesce(f.Key, ex.Key),
		BPM:         Coalesce(f.BPM, ex.BPM),
		ISRC:        Coalesce(f.ISRC, ex.ISRC),
		Lyrics:      Coalesce(f.Lyrics, ex.Lyrics),

		Duration:   duration,
		Size:       h.Size,
		Format:     Coalesce(ex.Format, formatFromName(h.OriginalFilename), formatFromName(h.StoredFilename), "unknown"),
		Bitrate:    ex.Bitrate,
		SampleRate: ex.SampleRate,
		Channels:   ex.Channels,
		Encoding:   ex.Encoding,

		FilePath: h.Ref,
		OwnerID:  ownerID,
	}
}

func formatFromName(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// safeName reduces a client filename (without extension) to a key-safe stem.
func safeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._-")
	if len(base) > 64 {
		base = base[:64]
	}
	if base == "" {
		base = "upload"
	}
	return base
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func coverKey(ownerID, recordID int64, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s%d/%d-%s%s", CoverPrefix, ownerID, recordID, randomSuffix(), ext)
}

var imageExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// imageExt validates that an upload is an image and picks its extension.
func imageExt(up Upload) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(up.ContentType, ";")[0]))
	if ext, ok := imageExts[ct]; ok {
		return ext, nil
	}
	ext := strings.ToLower(filepath.Ext(up.OriginalFilename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	for _, known := range imageExts {
		if ext == known {
			return ext, nil
		}
	}
	return "", apperr.Validation("cover must be a JPEG, PNG, GIF or WebP image")
}
