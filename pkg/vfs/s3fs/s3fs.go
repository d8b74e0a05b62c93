// Package s3fs implements a storage backend on Amazon S3 or any
// S3-compatible object store.
//
// Each file maps to one object under an optional key prefix. Reads use
// byte-range requests, so page-sized reads never download the whole
// object; writes are read-modify-write on the full object, which is
// correct but O(object size). This backend suits read-mostly databases
// distributed through object storage.
//
// The backend implements no locking capability, so the lock slots are
// omitted from its callback tables and the engine sees locking as
// unsupported. Deployments wanting multi-writer safety need a locking
// layer this package does not provide.
package s3fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/plugvfs/plugvfs/pkg/sqlite"
	"github.com/plugvfs/plugvfs/pkg/vfs"
)

// S3FS is an S3-backed storage backend.
//
// Thread Safety:
// The S3 client is safe for concurrent use; the backend itself holds no
// mutable state. Concurrent writers to the same object race with
// last-write-wins semantics, which is why the lock capability is
// deliberately absent rather than faked.
type S3FS struct {
	client    *s3.Client
	bucket    string
	keyPrefix string

	// ctx bounds every S3 call. The callback ABI is synchronous and
	// carries no context, so the backend's construction context is the
	// lifetime bound for all of its I/O.
	ctx context.Context
}

// New creates an S3-backed storage backend using the given client.
// keyPrefix, when non-empty, namespaces every object key.
func New(ctx context.Context, client *s3.Client, bucket, keyPrefix string) (*S3FS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3fs: bucket is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &S3FS{
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		ctx:       ctx,
	}, nil
}

func (b *S3FS) objectKey(name string) string {
	name = strings.TrimPrefix(name, "/")
	if b.keyPrefix == "" {
		return name
	}
	return strings.TrimSuffix(b.keyPrefix, "/") + "/" + name
}

// head returns the object size, or fs.ErrNotExist.
func (b *S3FS) head(name string) (int64, error) {
	out, err := b.client.HeadObject(b.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%q: %w", name, fs.ErrNotExist)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// isNotFound matches the S3 error shapes that mean "no such object".
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

// Open opens the named object. With the create flag an absent object is
// created empty; without it, absence is an error.
func (b *S3FS) Open(name string, flags sqlite.OpenFlag) (vfs.File, sqlite.OpenFlag, error) {
	_, err := b.head(name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, 0, err
		}
		if flags&sqlite.OpenCreate == 0 {
			return nil, 0, err
		}
		_, err = b.client.PutObject(b.ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(name)),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create object: %w", err)
		}
	}
	return &s3File{fs: b, name: name}, flags, nil
}

// Delete removes the named object. S3 deletion is idempotent, so a
// missing object is reported as fs.ErrNotExist only when the engine
// would care (the adapter maps it to success either way).
func (b *S3FS) Delete(name string, syncDir bool) error {
	_, err := b.client.DeleteObject(b.ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Access reports object existence.
func (b *S3FS) Access(name string, flags sqlite.AccessFlag) (bool, error) {
	_, err := b.head(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ============================================================================
// File handle
// ============================================================================

type s3File struct {
	fs   *S3FS
	name string
}

func (f *s3File) Close() error {
	return nil
}

// ReadAt reads with an S3 byte-range request, so only the requested
// window is transferred.
func (f *s3File) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	size, err := f.fs.head(f.name)
	if err != nil {
		return 0, err
	}
	if off >= size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	if end >= size {
		end = size - 1
	}

	out, err := f.fs.client.GetObject(f.fs.ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.fs.bucket),
		Key:    aws.String(f.fs.objectKey(f.name)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%q: %w", f.name, fs.ErrNotExist)
		}
		return 0, fmt.Errorf("failed to get object range: %w", err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, fmt.Errorf("failed to read object body: %w", err)
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// download fetches the whole object.
func (f *s3File) download() ([]byte, error) {
	out, err := f.fs.client.GetObject(f.fs.ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.fs.bucket),
		Key:    aws.String(f.fs.objectKey(f.name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%q: %w", f.name, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// upload replaces the whole object.
func (f *s3File) upload(data []byte) error {
	_, err := f.fs.client.PutObject(f.fs.ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.fs.bucket),
		Key:    aws.String(f.fs.objectKey(f.name)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// WriteAt is read-modify-write on the full object. Writing past the end
// zero-fills the gap.
func (f *s3File) WriteAt(p []byte, off int64) (int, error) {
	data, err := f.download()
	if err != nil {
		return 0, err
	}

	if end := off + int64(len(p)); end > int64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[off:], p)

	if err := f.upload(data); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *s3File) Truncate(size int64) error {
	data, err := f.download()
	if err != nil {
		return err
	}
	switch {
	case size < int64(len(data)):
		data = data[:size]
	case size > int64(len(data)):
		grown := make([]byte, size)
		copy(grown, data)
		data = grown
	default:
		return nil
	}
	return f.upload(data)
}

// Sync is a no-op: a completed PutObject is already durable.
func (f *s3File) Sync(flags sqlite.SyncFlag) error {
	return nil
}

func (f *s3File) Size() (int64, error) {
	return f.fs.head(f.name)
}

func (f *s3File) DeviceCharacteristics() sqlite.DeviceCharacteristics {
	// Object replacement is all-or-nothing; readers never see a torn
	// write.
	return sqlite.IOCapAtomic | sqlite.IOCapPowersafeOverwrite
}
