// Package s3 implements an object-store storage backend registered for the
// s3:// scheme. Metadata lives in small objects mirroring the filesystem
// backend's file names; shards are staged locally in the standard
// container format, published with a single upload (a completed PutObject
// is all-or-nothing, which gives the same no-partial-shard guarantee the
// filesystem backend gets from rename), and read back through ranged GETs.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/goccy/go-json"

	"github.com/graphpart/graphpart/pkg/storage"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

const urlScheme = "s3://"

// Client is the subset of the S3 API this backend uses. *awss3.Client
// satisfies it; tests substitute a fake.
type Client interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, opts ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Uploader is the subset of the transfer manager this backend uses.
type Uploader interface {
	Upload(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

func init() {
	must(storage.RegisterEntityStorage("s3", func(url string) (storage.EntityStorage, error) {
		b, err := newBucket(url)
		if err != nil {
			return nil, err
		}
		return &EntityStorage{bucket: b}, nil
	}))
	must(storage.RegisterRelationTypeStorage("s3", func(url string) (storage.RelationTypeStorage, error) {
		b, err := newBucket(url)
		if err != nil {
			return nil, err
		}
		return &RelationTypeStorage{bucket: b}, nil
	}))
	must(storage.RegisterEdgeStorage("s3", func(url string) (storage.EdgeStorage, error) {
		b, err := newBucket(url)
		if err != nil {
			return nil, err
		}
		return &EdgeStorage{bucket: b}, nil
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// bucket holds the resolved location and clients shared by the three
// capability implementations.
type bucket struct {
	name     string
	prefix   string
	client   Client
	uploader Uploader
}

// ParseURL splits an s3://bucket/prefix URL into bucket name and key
// prefix. The prefix may be empty; the bucket may not.
func ParseURL(url string) (bucketName, prefix string, err error) {
	if !strings.HasPrefix(url, urlScheme) {
		return "", "", xerrors.Newf(xerrors.ErrorTypeConfig, "not an s3 URL: %s", url)
	}
	rest := strings.TrimPrefix(url, urlScheme)
	bucketName, prefix, _ = strings.Cut(rest, "/")
	if bucketName == "" {
		return "", "", xerrors.Newf(xerrors.ErrorTypeConfig, "s3 URL %s has no bucket", url)
	}
	return bucketName, strings.Trim(prefix, "/"), nil
}

func newBucket(url string) (*bucket, error) {
	name, prefix, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeConfig, "failed to load AWS configuration")
	}
	client := awss3.NewFromConfig(cfg)

	return &bucket{
		name:     name,
		prefix:   prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (b *bucket) key(parts ...string) string {
	if b.prefix == "" {
		return strings.Join(parts, "/")
	}
	return b.prefix + "/" + strings.Join(parts, "/")
}

// prepare verifies the bucket is reachable. Buckets are not created
// implicitly; pointing at a missing bucket is a configuration error.
func (b *bucket) prepare(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(b.name)})
	if err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeConfig, "bucket %s is not accessible", b.name)
	}
	return nil
}

// has reports whether an object exists.
func (b *bucket) has(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to stat s3://%s/%s", b.name, key)
	}
	return true, nil
}

// get fetches a whole object. A missing object is the "could not load
// data" condition.
func (b *bucket) get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		if isMissing(err) {
			return nil, xerrors.Wrapf(err, xerrors.ErrorTypeNotFound,
				"could not load data from s3://%s/%s", b.name, key)
		}
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to get s3://%s/%s", b.name, key)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to read s3://%s/%s", b.name, key)
	}
	return data, nil
}

func (b *bucket) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to put s3://%s/%s", b.name, key)
	}
	return nil
}

// isMissing reports whether an S3 error means the object does not exist.
// HeadObject surfaces types.NotFound, GetObject surfaces types.NoSuchKey.
func isMissing(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

func (b *bucket) saveCount(ctx context.Context, key string, count int) error {
	return b.put(ctx, key, []byte(strconv.Itoa(count)+"\n"), "text/plain")
}

func (b *bucket) loadCount(ctx context.Context, key string) (int, error) {
	data, err := b.get(ctx, key)
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, xerrors.Wrapf(err, xerrors.ErrorTypeData, "malformed count object s3://%s/%s", b.name, key)
	}
	return count, nil
}

func (b *bucket) saveNames(ctx context.Context, key string, names []string) error {
	data, err := json.MarshalIndent(names, "", "    ")
	if err != nil {
		return xerrors.Wrap(err, xerrors.ErrorTypeInternal, "failed to encode name list")
	}
	return b.put(ctx, key, data, "application/json")
}

func (b *bucket) loadNames(ctx context.Context, key string) ([]string, error) {
	data, err := b.get(ctx, key)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeData, "malformed names object s3://%s/%s", b.name, key)
	}
	return names, nil
}
