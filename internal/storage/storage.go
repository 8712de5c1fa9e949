// Package storage keeps avatars and post media in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode"

	"bitboard/internal/middleware"
	"bitboard/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// MaxAvatarBytes bounds an avatar upload before decoding.
	MaxAvatarBytes = 5 << 20
	// MaxMediaBytes bounds a post or comment attachment.
	MaxMediaBytes = 50 << 20
)

// Config holds the bucket coordinates.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base under which objects are served. It defaults to
	// the endpoint.
	PublicURL string
}

// objectClient is the subset of *minio.Client the store uses.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store uploads objects and hands back their public URLs.
type Store struct {
	client    objectClient
	bucket    string
	publicURL string
	now       func() time.Time
}

// New connects to the object store described by cfg.
func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	return newStore(client, cfg.Bucket, public), nil
}

func newStore(client objectClient, bucket, publicURL string) *Store {
	return &Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	middleware.Logger.Info("created storage bucket", slog.String("bucket", s.bucket))
	return nil
}

// Upload writes r under object and returns its public URL.
func (s *Store) Upload(ctx context.Context, object string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", models.NewInternalError(fmt.Errorf("put %s: %w", object, err))
	}
	return s.URL(object), nil
}

// URL returns the public URL of object.
func (s *Store) URL(object string) string {
	return s.publicURL + "/" + s.bucket + "/" + object
}

// AvatarPath returns avatars/<userID>/<unix>.webp.
func AvatarPath(userID uint, at time.Time) string {
	return fmt.Sprintf("avatars/%d/%d.webp", userID, at.Unix())
}

// MediaPath returns media/<userID>/<unix>-<name> with name reduced to a safe file name.
func MediaPath(userID uint, at time.Time, name string) string {
	return fmt.Sprintf("media/%d/%d-%s", userID, at.Unix(), safeName(name))
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	if len(out) > 100 {
		out = out[len(out)-100:]
	}
	return out
}

// UploadAvatar re-encodes the image as a square webp and stores it.
func (s *Store) UploadAvatar(ctx context.Context, userID uint, r io.Reader) (string, error) {
	content, err := io.ReadAll(io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		return "", models.NewInternalError(err)
	}
	if len(content) > MaxAvatarBytes {
		return "", models.NewValidationError("File too large (max 5MB)")
	}
	encoded, err := ProcessAvatar(content)
	if err != nil {
		return "", models.NewValidationError(capitalize(err.Error()))
	}
	return s.Upload(ctx, AvatarPath(userID, s.now()), bytes.NewReader(encoded), int64(len(encoded)), "image/webp")
}

// UploadMedia stores an image or video attachment as-is.
func (s *Store) UploadMedia(ctx context.Context, userID uint, name, contentType string, r io.Reader, size int64) (string, error) {
	if size <= 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if size > MaxMediaBytes {
		return "", models.NewValidationError("File too large (max 50MB)")
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", models.NewInternalError(err)
	}
	head = head[:n]
	detected := http.DetectContentType(head)
	if !isAllowedMediaMIME(detected) {
		if !isAllowedMediaMIME(contentType) || strings.HasPrefix(normalizeContentType(contentType), "image/") {
			return "", models.NewValidationError("Unsupported media type")
		}
		detected = normalizeContentType(contentType)
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	return s.Upload(ctx, MediaPath(userID, s.now(), name), body, size, detected)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
