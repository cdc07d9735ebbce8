package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/knnmon/blobstore"
)

type MockS3Client struct {
	mock.Mock
}

var _ Client = (*MockS3Client)(nil)

func (m *MockS3Client) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *MockS3Client) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.UploadPartOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.CreateMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.CompleteMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.AbortMultipartUploadOutput)
	return out, args.Error(1)
}

func TestStore_Open(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", WithPrefix("runs"))

	t.Run("NotFound", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Bucket == "test-bucket" && *in.Key == "runs/missing.knnb"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(context.Background(), "missing.knnb")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("NoSuchKey", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Key == "runs/gone.knnb"
		})).Return(nil, &types.NoSuchKey{}).Once()

		_, err := store.Open(context.Background(), "gone.knnb")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Key == "runs/bank-000001.knnb"
		})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(100)}, nil).Once()

		blob, err := store.Open(context.Background(), "bank-000001.knnb")
		require.NoError(t, err)
		assert.Equal(t, int64(100), blob.Size())
	})

	mockClient.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", WithPrefix("runs"))

	var uploaded string
	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "test-bucket" && *in.Key == "runs/MANIFEST.json"
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		b, _ := io.ReadAll(in.Body)
		uploaded = string(b)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(context.Background(), "MANIFEST.json", []byte(`{"latest":"bank-000001.knnb"}`)))
	assert.Equal(t, `{"latest":"bank-000001.knnb"}`, uploaded)

	t.Run("Error", func(t *testing.T) {
		boom := errors.New("access denied")
		mockClient.On("PutObject", mock.Anything, mock.Anything).Return(nil, boom).Once()
		err := store.Put(context.Background(), "x", []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})
}

func TestStore_Delete(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", WithPrefix("runs"))

	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "runs/old.knnb"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()
	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "runs/gone.knnb"
	})).Return(nil, &types.NoSuchKey{}).Once()

	assert.NoError(t, store.Delete(context.Background(), "old.knnb"))
	assert.NoError(t, store.Delete(context.Background(), "gone.knnb"))
	mockClient.AssertExpectations(t)
}

func TestStore_List(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", WithPrefix("runs/"))

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return *in.Prefix == "runs/bank-" && in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("runs/bank-000002.knnb")}},
	}, nil).Once()
	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken != nil && *in.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("runs/bank-000001.knnb")}},
	}, nil).Once()

	names, err := store.List(context.Background(), "bank-")
	require.NoError(t, err)
	assert.Equal(t, []string{"bank-000001.knnb", "bank-000002.knnb"}, names)
}

func TestBlob_ReadAt(t *testing.T) {
	mockClient := new(MockS3Client)
	blob := &s3Blob{client: mockClient, bucket: "b", key: "k", size: 10}
	ctx := context.Background()

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Range == "bytes=0-4"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("hello"))}, nil).Once()

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	t.Run("ClampedAtEnd", func(t *testing.T) {
		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return *in.Range == "bytes=7-9"
		})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("xyz"))}, nil).Once()

		buf := make([]byte, 8)
		n, err := blob.ReadAt(ctx, buf, 7)
		assert.Equal(t, 3, n)
		assert.Equal(t, io.EOF, err)
		assert.Equal(t, "xyz", string(buf[:n]))
	})

	t.Run("PastEnd", func(t *testing.T) {
		n, err := blob.ReadAt(ctx, buf, 10)
		assert.Zero(t, n)
		assert.Equal(t, io.EOF, err)
	})

	t.Run("ReadAll", func(t *testing.T) {
		store := NewStore(mockClient, "b")
		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(3)}, nil).Once()
		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return *in.Key == "abc" && *in.Range == "bytes=0-2"
		})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("abc"))}, nil).Once()

		data, err := blobstore.ReadAll(ctx, store, "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(data))
	})
}
