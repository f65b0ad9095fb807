package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/ruteri/campuscred-backend/interfaces"
)

// S3EvidenceStore implements interfaces.EvidenceStore on Amazon S3 or a
// compatible service. Objects are private and encrypted at rest.
type S3EvidenceStore struct {
	client     s3iface.S3API
	bucketName string
	prefix     string
	log        *slog.Logger
}

// S3Options configures an S3EvidenceStore.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3EvidenceStore creates a new S3 evidence store with static credentials.
func NewS3EvidenceStore(opts S3Options, log *slog.Logger) (*S3EvidenceStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("empty S3 bucket name")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("%w: S3 credentials missing", interfaces.ErrNotConfigured)
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg := aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, ""),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		// Most S3-compatible services (MinIO, Ceph) need path-style addressing.
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return newS3EvidenceStoreWithClient(s3.New(sess), opts.Bucket, opts.Prefix, log), nil
}

func newS3EvidenceStoreWithClient(client s3iface.S3API, bucket, prefix string, log *slog.Logger) *S3EvidenceStore {
	return &S3EvidenceStore{
		client:     client,
		bucketName: bucket,
		prefix:     strings.Trim(prefix, "/"),
		log:        log,
	}
}

// Put uploads data under key.
func (s *S3EvidenceStore) Put(ctx context.Context, key string, data []byte) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucketName),
		Key:                  aws.String(objectKey),
		Body:                 bytes.NewReader(data),
		ACL:                  aws.String(s3.ObjectCannedACLPrivate),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		return fmt.Errorf("failed to upload evidence to S3: %w", err)
	}

	s.log.Debug("Stored evidence in S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", objectKey),
		slog.Int("size", len(data)))

	return nil
}

// Get downloads the object stored under key.
func (s *S3EvidenceStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, interfaces.ErrEvidenceNotFound
		}
		s.log.Error("Failed to get evidence from S3",
			slog.String("bucket", s.bucketName),
			slog.String("key", objectKey),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to get evidence from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence body: %w", err)
	}

	s.log.Debug("Fetched evidence from S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", objectKey),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Delete removes the object stored under key.
func (s *S3EvidenceStore) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete evidence from S3: %w", err)
	}
	return nil
}

// Name returns a unique identifier for this store.
func (s *S3EvidenceStore) Name() string {
	return fmt.Sprintf("s3-%s", s.bucketName)
}

func (s *S3EvidenceStore) objectKey(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix == "" {
		return clean, nil
	}
	return path.Join(s.prefix, clean), nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
