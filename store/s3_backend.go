package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bioimage-io/backoffice/types"
	"golang.org/x/xerrors"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeYAML   = "application/x-yaml"
	contentTypeBinary = "application/octet-stream"

	// DeleteObjects accepts at most this many keys per request.
	maxDeleteBatch = 1000
)

type S3Options struct {
	Host      string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type S3Backend struct {
	opts   S3Options
	client *s3.Client
}

func NewS3Backend(opts S3Options) *S3Backend {
	return &S3Backend{opts: opts}
}

func (b *S3Backend) Id() string {
	return "s3:" + b.opts.Host + "/" + b.opts.Bucket
}

func (b *S3Backend) Type() string {
	return "s3"
}

func (b *S3Backend) Open() error {
	if b.opts.Host == "" || b.opts.Bucket == "" {
		return types.Wrapf(types.ErrInvalidConfig, "s3 host and bucket are required")
	}
	region := b.opts.Region
	if region == "" {
		region = "us-east-1"
	}

	endpoint := b.opts.Host
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	b.client = s3.New(s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(b.opts.AccessKey, b.opts.SecretKey, ""),
		BaseEndpoint: aws.String(endpoint),
		// S3 compatible hosts do not serve virtual hosted buckets.
		UsePathStyle: true,
	})
	log.Infof("opened s3 backend %s", b.Id())
	return nil
}

func (b *S3Backend) Close() error {
	return nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".json"):
		return contentTypeJSON
	case strings.HasSuffix(key, ".yaml"), strings.HasSuffix(key, ".yml"):
		return contentTypeYAML
	default:
		return contentTypeBinary
	}
}

func (b *S3Backend) Put(ctx context.Context, key string, data []byte) error {
	return b.put(ctx, key, data, nil, nil)
}

func (b *S3Backend) put(ctx context.Context, key string, data []byte, ifMatch *string, ifNoneMatch *string) error {
	input := &s3.PutObjectInput{
		Bucket:        &b.opts.Bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType(key)),
		ContentLength: aws.Int64(int64(len(data))),
		IfMatch:       ifMatch,
		IfNoneMatch:   ifNoneMatch,
	}

	_, err := b.client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return types.Wrapf(types.ErrPreconditionFailed, "%s", key)
		}
		return xerrors.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := b.GetWithTag(ctx, key)
	return data, err
}

func (b *S3Backend) GetWithTag(ctx context.Context, key string) ([]byte, string, error) {
	// Head works around S3 compatible hosts that report a missing bucket
	// for a missing key on GetObject.
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.opts.Bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", types.Wrapf(types.ErrNotFound, "%s", key)
		}
		return nil, "", xerrors.Errorf("failed to stat %s: %w", key, err)
	}

	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.opts.Bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", types.Wrapf(types.ErrNotFound, "%s", key)
		}
		return nil, "", xerrors.Errorf("failed to download %s: %w", key, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, "", xerrors.Errorf("failed to read %s: %w", key, err)
	}
	return data, aws.ToString(output.ETag), nil
}

func (b *S3Backend) PutIfMatch(ctx context.Context, key string, data []byte, tag string) error {
	if tag == "" {
		return b.put(ctx, key, data, nil, aws.String("*"))
	}
	return b.put(ctx, key, data, aws.String(tag), nil)
}

func (b *S3Backend) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: &b.opts.Bucket,
		Prefix: aws.String(prefix),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	var keys []string
	pages := s3.NewListObjectsV2Paginator(b.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, xerrors.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		for _, p := range page.CommonPrefixes {
			keys = append(keys, aws.ToString(p.Prefix))
		}
	}
	return keys, nil
}

func (b *S3Backend) Copy(ctx context.Context, src string, dst string) error {
	source := b.opts.Bucket + "/" + url.PathEscape(src)
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &b.opts.Bucket,
		CopySource: aws.String(strings.ReplaceAll(source, "%2F", "/")),
		Key:        &dst,
	})
	if err != nil {
		if isNotFound(err) {
			return types.Wrapf(types.ErrNotFound, "%s", src)
		}
		return xerrors.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

func (b *S3Backend) Delete(ctx context.Context, keys ...string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(key)})
		}

		output, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &b.opts.Bucket,
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return xerrors.Errorf("failed to delete %d objects: %w", len(objects), err)
		}
		if len(output.Errors) > 0 {
			e := output.Errors[0]
			return xerrors.Errorf("failed to delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}

func (b *S3Backend) Url(key string) string {
	host := b.opts.Host
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return strings.TrimSuffix(host, "/") + "/" + b.opts.Bucket + "/" + key
}

func isNotFound(err error) bool {
	var nk *s3types.NoSuchKey
	if errors.As(err, &nk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	return apiErrorCode(err) == "NotFound" || apiErrorCode(err) == "NoSuchKey"
}

func isPreconditionFailed(err error) bool {
	code := apiErrorCode(err)
	return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

var _ ConditionalBackend = (*S3Backend)(nil)
