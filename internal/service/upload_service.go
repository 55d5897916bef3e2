package service

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the content is not a supported image.
	ErrUploadTypeNotAllowed = errors.New("only png, jpeg, gif or webp images are allowed")
	// ErrUploadEmpty indicates no file content was sent.
	ErrUploadEmpty = errors.New("file is required")
	// ErrUploadUnavailable indicates no storage backend is configured.
	ErrUploadUnavailable = errors.New("avatar uploads are not configured")
)

var allowedAvatarTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/gif":  {},
	"image/webp": {},
}

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, owner string, reader io.Reader) (string, error)
}

// AvatarUploader validates image uploads by content and hands them to storage.
type AvatarUploader interface {
	Upload(ctx context.Context, owner string, data []byte) (string, error)
}

type avatarUploader struct {
	storage FileStorage
	maxSize int64
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// NewAvatarUploader constructs an uploader. A nil storage rejects every upload.
func NewAvatarUploader(storage FileStorage, maxSizeMB int, logger zerolog.Logger) AvatarUploader {
	if maxSizeMB <= 0 {
		maxSizeMB = 2
	}
	return &avatarUploader{
		storage: storage,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/questkids-api/internal/service/upload"),
		logger:  logger.With().Str("component", "avatar_uploader").Logger(),
	}
}

func (u *avatarUploader) Upload(ctx context.Context, owner string, data []byte) (string, error) {
	ctx, span := u.tracer.Start(ctx, "avatar.upload", trace.WithAttributes(
		attribute.Int64("upload.max_bytes", u.maxSize),
		attribute.Int("upload.size_bytes", len(data)),
	))
	defer span.End()

	if u.storage == nil {
		span.SetStatus(codes.Error, "storage missing")
		return "", ErrUploadUnavailable
	}
	if len(data) == 0 {
		span.SetStatus(codes.Error, "validation failed")
		return "", ErrUploadEmpty
	}
	if int64(len(data)) > u.maxSize {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return "", ErrUploadTooLarge
	}

	detected := mimetype.Detect(data).String()
	span.SetAttributes(attribute.String("upload.detected_mime", detected))
	if _, ok := allowedAvatarTypes[detected]; !ok {
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return "", ErrUploadTypeNotAllowed
	}

	url, err := u.storage.Upload(ctx, owner, bytes.NewReader(data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return "", err
	}

	u.logger.Info().Str("user_id", owner).Str("mime", detected).Msg("avatar stored")
	span.SetStatus(codes.Ok, "stored")
	return url, nil
}
