package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"bitboard/internal/models"
	"bitboard/internal/testutil"

	"github.com/chai2010/webp"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	bucket, object, contentType string
	size                        int64
	body                        []byte
}

type fakeObjects struct {
	exists  bool
	made    []string
	puts    []putCall
	putErr  error
	headErr error
}

func (f *fakeObjects) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.headErr
}

func (f *fakeObjects) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.puts = append(f.puts, putCall{bucket: bucket, object: object, contentType: opts.ContentType, size: size, body: body})
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func testStore(f *fakeObjects) *Store {
	s := newStore(f, "media", "http://cdn.local/")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestProcessAvatar_SquaresAndScales(t *testing.T) {
	out, err := ProcessAvatar(testutil.PNG(t, 1200, 800))
	require.NoError(t, err)

	img, err := webp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, AvatarMaxSize, img.Bounds().Dx())
	assert.Equal(t, AvatarMaxSize, img.Bounds().Dy())

	small, err := ProcessAvatar(testutil.PNG(t, 64, 100))
	require.NoError(t, err)
	img, err = webp.Decode(bytes.NewReader(small))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx(), "small images are cropped but never upscaled")
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestProcessAvatar_Rejects(t *testing.T) {
	_, err := ProcessAvatar(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = ProcessAvatar([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrInvalidImageType)

	broken := testutil.PNG(t, 10, 10)[:40]
	_, err = ProcessAvatar(broken)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestStore_EnsureBucket(t *testing.T) {
	f := &fakeObjects{}
	require.NoError(t, testStore(f).EnsureBucket(context.Background()))
	assert.Equal(t, []string{"media"}, f.made)

	f = &fakeObjects{exists: true}
	require.NoError(t, testStore(f).EnsureBucket(context.Background()))
	assert.Empty(t, f.made)

	f = &fakeObjects{headErr: errors.New("unreachable")}
	assert.Error(t, testStore(f).EnsureBucket(context.Background()))
}

func TestStore_UploadAvatar(t *testing.T) {
	f := &fakeObjects{}
	url, err := testStore(f).UploadAvatar(context.Background(), 42, bytes.NewReader(testutil.PNG(t, 300, 300)))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/media/avatars/42/1700000000.webp", url)

	require.Len(t, f.puts, 1)
	assert.Equal(t, "avatars/42/1700000000.webp", f.puts[0].object)
	assert.Equal(t, "image/webp", f.puts[0].contentType)
	assert.Equal(t, int64(len(f.puts[0].body)), f.puts[0].size)

	_, err = testStore(f).UploadAvatar(context.Background(), 42, strings.NewReader("text"))
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestStore_UploadMedia(t *testing.T) {
	f := &fakeObjects{}
	content := testutil.PNG(t, 20, 20)
	url, err := testStore(f).UploadMedia(context.Background(), 7, "../../My Chart.png", "image/png", bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/media/media/7/1700000000-My_Chart.png", url)
	require.Len(t, f.puts, 1)
	assert.Equal(t, content, f.puts[0].body, "sniffed bytes are replayed into the upload")
	assert.Equal(t, "image/png", f.puts[0].contentType)

	_, err = testStore(f).UploadMedia(context.Background(), 7, "x.sh", "application/x-sh", strings.NewReader("#!/bin/sh"), 9)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	_, err = testStore(f).UploadMedia(context.Background(), 7, "x.png", "image/png", strings.NewReader(""), 0)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	f.putErr = errors.New("bucket gone")
	_, err = testStore(f).UploadMedia(context.Background(), 7, "x.png", "image/png", bytes.NewReader(content), int64(len(content)))
	assert.True(t, models.IsCode(err, models.CodeInternal))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "file", safeName(".."))
	assert.Equal(t, "report_2024.pdf", safeName("C:\\docs\\report 2024.pdf"))
	assert.Equal(t, "btc.png", safeName("₿btc.png"))
}
