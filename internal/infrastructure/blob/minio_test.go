package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"accountx/internal/domain"
)

type objectAPIMock struct {
	mock.Mock
}

func (m *objectAPIMock) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *objectAPIMock) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *objectAPIMock) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *objectAPIMock) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	obj, _ := args.Get(0).(*minio.Object)
	return obj, args.Error(1)
}

func (m *objectAPIMock) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucketName, objectName, opts).Error(0)
}

func TestMinioStore_EnsureBucket(t *testing.T) {
	api := new(objectAPIMock)
	store := &MinioStore{client: api, bucket: "media"}
	ctx := context.Background()

	api.On("BucketExists", ctx, "media").Return(false, nil).Once()
	api.On("MakeBucket", ctx, "media", minio.MakeBucketOptions{Region: "eu-central-1"}).Return(nil).Once()
	require.NoError(t, store.EnsureBucket(ctx, "eu-central-1"))

	api.On("BucketExists", ctx, "media").Return(true, nil).Once()
	require.NoError(t, store.EnsureBucket(ctx, "eu-central-1"))

	api.AssertExpectations(t)
}

func TestMinioStore_PutUnknownSize(t *testing.T) {
	api := new(objectAPIMock)
	store := &MinioStore{client: api, bucket: "media"}
	ctx := context.Background()
	body := strings.NewReader("pdf")

	api.On("PutObject", ctx, "media", "media/m1", body, int64(-1), minio.PutObjectOptions{ContentType: "application/pdf"}).
		Return(minio.UploadInfo{Key: "media/m1"}, nil)

	require.NoError(t, store.Put(ctx, "media/m1", body, 0, "application/pdf"))
	api.AssertExpectations(t)
}

func TestMinioStore_GetMissing(t *testing.T) {
	api := new(objectAPIMock)
	store := &MinioStore{client: api, bucket: "media"}
	ctx := context.Background()

	api.On("GetObject", ctx, "media", "media/m1", minio.GetObjectOptions{}).
		Return(nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."})

	_, err := store.Get(ctx, "media/m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMinioStore_DeleteError(t *testing.T) {
	api := new(objectAPIMock)
	store := &MinioStore{client: api, bucket: "media"}
	ctx := context.Background()
	boom := errors.New("connection refused")

	api.On("RemoveObject", ctx, "media", "media/m1", minio.RemoveObjectOptions{}).Return(boom)

	err := store.Delete(ctx, "media/m1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
