package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tunemux/model"

	"github.com/minio/minio-go/v7"
)

type fakeBucket struct {
	mu      sync.Mutex
	exists  bool
	objects map[string][]byte
	puts    int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (f *fakeBucket) BucketExists(ctx context.Context, bucket string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, nil
}

func (f *fakeBucket) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists = true
	return nil
}

func (f *fakeBucket) PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = data
	f.puts++
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: int64(len(data))}, nil
}

func (f *fakeBucket) StatObject(ctx context.Context, bucket, name string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[name]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	}
	return minio.ObjectInfo{Key: name, Size: int64(len(data))}, nil
}

func (f *fakeBucket) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	ch := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		ch <- minio.ObjectInfo{Key: k, Size: int64(len(f.objects[k])), LastModified: time.Unix(1700000000, 0)}
	}
	f.mu.Unlock()
	close(ch)
	return ch
}

func (f *fakeBucket) RemoveObjects(ctx context.Context, bucket string, objects <-chan minio.ObjectInfo, opts minio.RemoveObjectsOptions) <-chan minio.RemoveObjectError {
	errs := make(chan minio.RemoveObjectError)
	go func() {
		defer close(errs)
		for obj := range objects {
			f.mu.Lock()
			delete(f.objects, obj.Key)
			f.mu.Unlock()
		}
	}()
	return errs
}

type fakeOffline struct {
	records []model.DownloadRecord
	blobs   map[string][]byte
}

func (f *fakeOffline) GetDownloads(ctx context.Context) ([]model.DownloadRecord, error) {
	return f.records, nil
}

func (f *fakeOffline) GetOfflineBlob(ctx context.Context, key string) (*model.OfflineBlob, error) {
	data, ok := f.blobs[key]
	if !ok {
		return nil, errors.New("missing blob")
	}
	return &model.OfflineBlob{ID: key, Data: data}, nil
}

func (f *fakeOffline) add(source model.Source, id, data string) {
	tr := model.Track{ID: id, Title: id, Source: source}
	f.records = append(f.records, model.DownloadRecord{ID: tr.Key(), Track: tr, Size: int64(len(data))})
	f.blobs[tr.Key()] = []byte(data)
}

func TestEnsureBucket(t *testing.T) {
	bucket := newFakeBucket()
	m := NewMirror(bucket, "tunemux", "us-east-1")
	if err := m.EnsureBucket(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !bucket.exists {
		t.Error("bucket not created")
	}
}

func TestObjectName(t *testing.T) {
	got := ObjectName(model.Track{ID: "abc", Source: model.SourceAudius})
	if got != "offline/audius/abc" {
		t.Errorf("ObjectName = %q", got)
	}
}

func TestSyncUploadsMissingOnly(t *testing.T) {
	bucket := newFakeBucket()
	m := NewMirror(bucket, "tunemux", "")
	src := &fakeOffline{blobs: map[string][]byte{}}
	src.add(model.SourceAudius, "a", "aaaa")
	src.add(model.SourceNetease, "b", "bb")
	ctx := context.Background()

	res, err := m.Sync(ctx, src, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Uploaded != 2 || res.Skipped != 0 {
		t.Errorf("first sync = %+v", res)
	}

	res, err = m.Sync(ctx, src, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Uploaded != 0 || res.Skipped != 2 || bucket.puts != 2 {
		t.Errorf("second sync = %+v, puts = %d", res, bucket.puts)
	}
	if string(bucket.objects["offline/netease/b"]) != "bb" {
		t.Errorf("object = %q", bucket.objects["offline/netease/b"])
	}
}

func TestSyncPrunesDeletedDownloads(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects["offline/youtube/gone"] = []byte("old")
	bucket.objects["other/keep"] = []byte("x")
	m := NewMirror(bucket, "tunemux", "")
	src := &fakeOffline{blobs: map[string][]byte{}}
	src.add(model.SourceAudius, "a", "aaaa")

	res, err := m.Sync(context.Background(), src, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed != 1 {
		t.Errorf("removed = %d", res.Removed)
	}
	if _, ok := bucket.objects["offline/youtube/gone"]; ok {
		t.Error("stale object still present")
	}
	if _, ok := bucket.objects["other/keep"]; !ok {
		t.Error("objects outside the offline prefix must survive")
	}
}

func TestStats(t *testing.T) {
	bucket := newFakeBucket()
	bucket.objects["offline/audius/a"] = []byte("1234")
	bucket.objects["offline/audius/b"] = []byte("12")
	bucket.objects["offline/netease/c"] = []byte("1")
	m := NewMirror(bucket, "tunemux", "")

	all, err := m.Stats(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalObjects != 3 || all.TotalSize != 7 {
		t.Errorf("all = %+v", all)
	}
	audius, err := m.Stats(context.Background(), model.SourceAudius)
	if err != nil {
		t.Fatal(err)
	}
	if audius.TotalObjects != 2 || audius.TotalSize != 6 {
		t.Errorf("audius = %+v", audius)
	}
}
