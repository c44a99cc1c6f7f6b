package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"tunemux/config"
	"tunemux/logger"
	"tunemux/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const offlinePrefix = "offline/"

// ObjectAPI is the part of *minio.Client the mirror uses.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObjects(ctx context.Context, bucketName string, objectsCh <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError
}

var _ ObjectAPI = (*minio.Client)(nil)

// OfflineSource lists downloads and reads their audio.
type OfflineSource interface {
	GetDownloads(ctx context.Context) ([]model.DownloadRecord, error)
	GetOfflineBlob(ctx context.Context, key string) (*model.OfflineBlob, error)
}

// Mirror copies offline audio into a MinIO bucket so downloads survive the
// local database.
type Mirror struct {
	client ObjectAPI
	bucket string
	region string
	log    *zap.Logger
}

// BucketStats summarises the objects under a prefix.
type BucketStats struct {
	TotalObjects int64     `json:"totalObjects"`
	TotalSize    int64     `json:"totalSize"`
	LastModified time.Time `json:"lastModified"`
}

// SyncResult counts what a sync did.
type SyncResult struct {
	Uploaded int `json:"uploaded"`
	Skipped  int `json:"skipped"`
	Removed  int `json:"removed"`
}

// NewMinioClient builds a client from the MINIO_* settings.
func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

func NewMirror(client ObjectAPI, bucket, region string) *Mirror {
	return &Mirror{
		client: client,
		bucket: bucket,
		region: region,
		log:    logger.Named("mirror"),
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	m.log.Info("bucket created", logger.String("bucket", m.bucket))
	return nil
}

// ObjectName is where a track's audio lives in the bucket.
func ObjectName(track model.Track) string {
	return offlinePrefix + path.Join(string(track.Source), track.ID)
}

// Push uploads one downloaded track.
func (m *Mirror) Push(ctx context.Context, rec model.DownloadRecord, data []byte) error {
	name := ObjectName(rec.Track)
	_, err := m.client.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "audio/mpeg",
		UserMetadata: map[string]string{
			"title":  rec.Track.Title,
			"artist": rec.Track.Artist,
		},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (m *Mirror) has(ctx context.Context, name string, size int64) (bool, error) {
	info, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return info.Size == size, nil
}

// Sync uploads every download missing from the bucket. With prune set it also
// removes mirrored objects whose download was deleted locally.
func (m *Mirror) Sync(ctx context.Context, src OfflineSource, prune bool) (SyncResult, error) {
	var res SyncResult
	downloads, err := src.GetDownloads(ctx)
	if err != nil {
		return res, err
	}

	keep := make(map[string]bool, len(downloads))
	for _, rec := range downloads {
		name := ObjectName(rec.Track)
		keep[name] = true

		ok, err := m.has(ctx, name, rec.Size)
		if err != nil {
			return res, err
		}
		if ok {
			res.Skipped++
			continue
		}
		blob, err := src.GetOfflineBlob(ctx, rec.ID)
		if err != nil {
			return res, err
		}
		if err := m.Push(ctx, rec, blob.Data); err != nil {
			return res, err
		}
		res.Uploaded++
	}

	if prune {
		n, err := m.prune(ctx, keep)
		res.Removed = n
		if err != nil {
			return res, err
		}
	}

	m.log.Info("mirror synced",
		logger.Int("uploaded", res.Uploaded),
		logger.Int("skipped", res.Skipped),
		logger.Int("removed", res.Removed))
	return res, nil
}

func (m *Mirror) prune(ctx context.Context, keep map[string]bool) (int, error) {
	var stale []minio.ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: offlinePrefix, Recursive: true}) {
		if obj.Err != nil {
			return 0, fmt.Errorf("list objects: %w", obj.Err)
		}
		if !keep[obj.Key] {
			stale = append(stale, obj)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(stale))
	for _, obj := range stale {
		objectsCh <- obj
	}
	close(objectsCh)

	for rerr := range m.client.RemoveObjects(ctx, m.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return 0, fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return len(stale), nil
}

// Stats summarises the mirrored objects, optionally under one source.
func (m *Mirror) Stats(ctx context.Context, source model.Source) (BucketStats, error) {
	prefix := offlinePrefix
	if source != "" {
		prefix += strings.TrimSuffix(string(source), "/") + "/"
	}

	var stats BucketStats
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return stats, fmt.Errorf("list objects: %w", obj.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
	}
	return stats, nil
}
