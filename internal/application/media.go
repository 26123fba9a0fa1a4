package application

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"accountx/internal/domain"
	"accountx/internal/ports"
)

type Upload struct {
	CompanyID   string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaService stores invoice metadata as records and their content in the blob store.
type MediaService struct {
	*RecordService[domain.Media]
}

func NewMediaService(deps Dependencies) *MediaService {
	return &MediaService{RecordService: &RecordService[domain.Media]{
		deps:   deps.withDefaults(),
		entity: domain.EntityMedia,
		repo:   func(r ports.Repositories) ports.RecordRepository[domain.Media] { return r.Media },
		afterDelete: func(ctx context.Context, repos ports.Repositories, deleted domain.Media) error {
			return detachEverywhere(ctx, repos, deleted.CompanyID, deleted.ID)
		},
	}}
}

func (s *MediaService) Upload(ctx context.Context, actorID string, upload Upload) (domain.Media, error) {
	if upload.Body == nil || s.deps.Blobs == nil {
		return domain.Media{}, domain.ErrInvalidInput
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := strings.TrimSpace(upload.FileName)
	if name != "" {
		name = filepath.Base(name)
	}
	meta := domain.Media{
		CompanyID:        upload.CompanyID,
		OriginalFileName: name,
		ContentType:      contentType,
		Size:             upload.Size,
	}

	var stored string
	created, err := s.create(ctx, actorID, meta, func(ctx context.Context, m domain.Media) error {
		if err := s.deps.Blobs.Put(ctx, m.BlobKey(), upload.Body, m.Size, m.ContentType); err != nil {
			return err
		}
		stored = m.BlobKey()
		return nil
	})
	if err != nil && stored != "" {
		if derr := s.deps.Blobs.Delete(ctx, stored); derr != nil {
			s.deps.Logger.Warn(ctx, "failed to remove orphaned media content", "key", stored, "error", derr)
		}
	}
	return created, err
}

// Download returns the metadata and an open reader on the content; the caller closes it.
func (s *MediaService) Download(ctx context.Context, actorID, id string) (domain.Media, io.ReadCloser, error) {
	m, err := s.Get(ctx, actorID, id)
	if err != nil {
		return domain.Media{}, nil, err
	}
	if s.deps.Blobs == nil {
		return domain.Media{}, nil, domain.ErrNotFound
	}
	body, err := s.deps.Blobs.Get(ctx, m.BlobKey())
	if err != nil {
		return domain.Media{}, nil, err
	}
	return m, body, nil
}

// Delete removes the metadata, the grants and every reference to the media, then
// its content.
func (s *MediaService) Delete(ctx context.Context, actorID, id string) (domain.Media, error) {
	m, err := s.RecordService.Delete(ctx, actorID, id)
	if err != nil {
		return domain.Media{}, err
	}
	if s.deps.Blobs != nil {
		if err := s.deps.Blobs.Delete(ctx, m.BlobKey()); err != nil {
			s.deps.Logger.Warn(ctx, "failed to delete media content", "media_id", m.ID, "error", err)
		}
	}
	return m, nil
}
