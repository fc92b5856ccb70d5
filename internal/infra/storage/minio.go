package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/rustgreen/backend/internal/domain/sessions"
)

// MinioStore keeps uploaded source in an object bucket under
// sessions/<session-id>/uploaded_code.rs.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	region     string
}

// NewMinioStore connects and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*MinioStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: cli, bucketName: bucket, region: region}, nil
}

func sourceKey(id domain.SessionID) string {
	return fmt.Sprintf("sessions/%s/%s", id, sourceFileName)
}

func (s *MinioStore) SaveSource(ctx context.Context, id domain.SessionID, code string) error {
	r := strings.NewReader(code)
	_, err := s.client.PutObject(ctx, s.bucketName, sourceKey(id), r, int64(r.Len()), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	return err
}

func (s *MinioStore) HasSource(ctx context.Context, id domain.SessionID) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, sourceKey(id), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

func (s *MinioStore) ReadSource(ctx context.Context, id domain.SessionID) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, sourceKey(id), minio.GetObjectOptions{})
	if err != nil {
		return "", err
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", domain.ErrNoSource
		}
		return "", err
	}
	return string(b), nil
}

func (s *MinioStore) DeleteSource(ctx context.Context, id domain.SessionID) error {
	return s.client.RemoveObject(ctx, s.bucketName, sourceKey(id), minio.RemoveObjectOptions{})
}
