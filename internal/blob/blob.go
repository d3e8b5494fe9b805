// Package blob stores encrypted content blobs in S3-compatible storage,
// addressed by the SHA-256 of their bytes.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether enough configuration is present to reach storage.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Store is the content-addressed blob store adapter.
type Store struct {
	client s3Client
	bucket string
}

func NewStore(cfg Config) *Store {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &Store{client: s3.New(opts), bucket: cfg.Bucket}
}

// NewStoreWithClient wires an explicit client. Tests use it to back the
// store with an in-memory double.
func NewStoreWithClient(client s3Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

var refPattern = regexp.MustCompile(`^sha256/[0-9a-f]{64}$`)

// ValidRef reports whether ref has the shape this store produces.
func ValidRef(ref string) bool {
	return refPattern.MatchString(ref)
}

// Put stores data and returns its content-addressed reference,
// "sha256/<hex digest>". Storing the same bytes twice yields the same ref
// and overwrites the identical object, which is harmless.
func (s *Store) Put(ctx context.Context, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	ref := "sha256/" + hex.EncodeToString(sum[:])

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(ref),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put blob: %w", err)
	}
	return ref, nil
}

// Get fetches a blob by reference and verifies it still hashes to the ref.
func (s *Store) Get(ctx context.Context, ref string) ([]byte, error) {
	if !ValidRef(ref) {
		return nil, fmt.Errorf("invalid blob ref %q", ref)
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	sum := sha256.Sum256(data)
	if ref != "sha256/"+hex.EncodeToString(sum[:]) {
		return nil, fmt.Errorf("blob %s failed integrity check", ref)
	}
	return data, nil
}
