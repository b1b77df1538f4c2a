package contentstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/javajoker/vidmarket-backend/internal/config"
	"github.com/javajoker/vidmarket-backend/internal/models"
)

const SchemeS3 = "s3"

// S3Store keeps videos in an S3 bucket. Keys are derived from the content
// digest, so re-uploading the same bytes on the same day overwrites the
// same object.
type S3Store struct {
	client  s3iface.S3API
	bucket  string
	timeout time.Duration
	now     func() time.Time
}

func NewS3Store(cfg config.AWSConfig, timeout time.Duration) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3StoreWithClient(s3.New(sess), cfg.S3Bucket, timeout), nil
}

func NewS3StoreWithClient(client s3iface.S3API, bucket string, timeout time.Duration) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *S3Store) Scheme() string { return SchemeS3 }

func (s *S3Store) Put(ctx context.Context, in PutInput) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sum := sha256.Sum256(in.Data)
	digestHex := hex.EncodeToString(sum[:])
	now := s.now().UTC()
	key := fmt.Sprintf("videos/%s/%s%s", now.Format("20060102"), digestHex, strings.ToLower(filepath.Ext(in.Filename)))

	contentType := in.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	out, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(in.Data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(in.Data))),
		Metadata: map[string]*string{
			"Sha256":   aws.String(digestHex),
			"Filename": aws.String(filepath.Base(in.Filename)),
		},
	})
	if err != nil {
		return nil, unavailable("put", err)
	}

	contentID := s.bucket + "/" + key
	return &Object{
		ContentID: contentID,
		Locator:   Locator(SchemeS3, contentID),
		Proof: models.StorageProof{
			Backend:    SchemeS3,
			ContentID:  contentID,
			Digest:     "sha256:" + digestHex,
			Size:       int64(len(in.Data)),
			Commitment: strings.Trim(aws.StringValue(out.ETag), `"`),
			StoredAt:   now,
		},
	}, nil
}

// GetRange reads "<bucket>/<key>" with an S3 ranged GET.
func (s *S3Store) GetRange(ctx context.Context, contentID string, offset, length int64) (io.ReadCloser, int64, error) {
	bucket, key, ok := strings.Cut(contentID, "/")
	if !ok || bucket == "" || key == "" {
		return nil, 0, fmt.Errorf("%w: s3 content id %q", ErrBadLocator, contentID)
	}
	if offset < 0 || length == 0 {
		return nil, 0, fmt.Errorf("%w: offset %d length %d", ErrRange, offset, length)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if r := rangeHeader(offset, length); r != "" {
		input.Range = aws.String(r)
	}

	ctx, cancel, stop := headerDeadline(ctx, s.timeout)
	out, err := s.client.GetObjectWithContext(ctx, input)
	stop()
	if err != nil {
		cancel()
		switch {
		case isS3NotFound(err):
			return nil, 0, ErrNotFound
		case isS3InvalidRange(err):
			return nil, 0, fmt.Errorf("%w: %v", ErrRange, err)
		}
		return nil, 0, unavailable("get", err)
	}

	size := aws.Int64Value(out.ContentLength)
	if out.ContentRange != nil {
		start, total, ok := parseContentRange(aws.StringValue(out.ContentRange))
		if !ok || start != offset {
			out.Body.Close()
			cancel()
			return nil, 0, unavailable("get", fmt.Errorf("unexpected content range %q", aws.StringValue(out.ContentRange)))
		}
		size = total
	} else if offset > 0 {
		out.Body.Close()
		cancel()
		return nil, 0, unavailable("get", errors.New("ranged read returned the whole object"))
	}

	return &cancelOnClose{ReadCloser: limitBody(out.Body, length), cancel: cancel}, size, nil
}

func (s *S3Store) IsReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return unavailable("head bucket", err)
	}
	return nil
}

func isS3InvalidRange(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == "InvalidRange"
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}
