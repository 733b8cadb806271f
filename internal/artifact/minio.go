package artifact

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	publicURL       string
	useSSL          bool
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL: false,
	}

	for _, o := range opts {
		o(cfg)
	}

	if cfg.publicURL == "" {
		scheme := "http"
		if cfg.useSSL {
			scheme = "https"
		}
		cfg.publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.endpoint, cfg.bucket)
	}
	return cfg
}

type MinioStore struct {
	cfg    *minioConfig
	client *minio.Client
}

func NewMinioStore(opts ...MinioOpts) (*MinioStore, error) {
	cfg := newConfig(opts...)

	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating minio client")
	}

	return &MinioStore{cfg: cfg, client: minioClient}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.cfg.bucket)
	if err != nil {
		return errors.Wrapf(err, "checking bucket %s", m.cfg.bucket)
	}
	if exists {
		return nil
	}

	zap.S().Named("artifact").Infow("creating bucket", "bucket", m.cfg.bucket)
	if err := m.client.MakeBucket(ctx, m.cfg.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrapf(err, "creating bucket %s", m.cfg.bucket)
	}
	return nil
}

func (m *MinioStore) Put(ctx context.Context, obj Object) (string, error) {
	key := objectKey(obj)

	info, err := m.client.PutObject(ctx, m.cfg.bucket, key, obj.Body, obj.Size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
		UserMetadata: map[string]string{
			"owner":    obj.OwnerID,
			"modality": obj.Modality,
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", key)
	}

	zap.S().Named("artifact").Debugw("object stored", "key", key, "size", info.Size)
	return m.cfg.publicURL + "/" + key, nil
}

func (m *MinioStore) Delete(ctx context.Context, url string) error {
	key, err := keyFromURL(m.cfg.publicURL, url)
	if err != nil {
		return err
	}

	if err := m.client.RemoveObject(ctx, m.cfg.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "removing %s", key)
	}
	return nil
}

func (m *MinioStore) Type() string {
	return "minio"
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}

// WithPublicURL overrides the url prefix handed back to clients.
func WithPublicURL(url string) MinioOpts {
	return func(c *minioConfig) {
		c.publicURL = url
	}
}
