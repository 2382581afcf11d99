package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iudanet/supwarden/internal/server/storage"
)

// GridFSOptions - параметры MongoDB
type GridFSOptions struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Bucket   string        `yaml:"bucket"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultGridFSBucket - имя bucket по умолчанию
const DefaultGridFSBucket = "uploads"

// GridFSStore keeps attachments in a MongoDB GridFS bucket.
// Reference is the hex ObjectID of the stored file.
type GridFSStore struct {
	client *mongo.Client
	bucket *gridfs.Bucket
}

// NewGridFSStore connects to MongoDB and opens the bucket
func NewGridFSStore(ctx context.Context, opts GridFSOptions) (*GridFSStore, error) {
	if opts.Database == "" {
		return nil, errors.New("gridfs database is required")
	}
	if opts.Bucket == "" {
		opts.Bucket = DefaultGridFSBucket
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Timeout > 0 {
		// GridFS v1 API has no context, client timeout covers uploads and downloads
		clientOpts.SetTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(opts.Database), options.GridFSBucket().SetName(opts.Bucket))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}

	return &GridFSStore{client: client, bucket: bucket}, nil
}

// Put uploads the stream
func (s *GridFSStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := s.bucket.UploadFromStream(name, r)
	if err != nil {
		return "", fmt.Errorf("gridfs upload failed: %w", err)
	}

	return id.Hex(), nil
}

// Get opens a download stream
func (s *GridFSStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, storage.ErrBlobNotFound
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, fmt.Errorf("gridfs download failed: %w", err)
	}

	return stream, nil
}

// Delete removes the file and its chunks
func (s *GridFSStore) Delete(ctx context.Context, ref string) error {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return storage.ErrBlobNotFound
	}

	if err := s.bucket.DeleteContext(ctx, id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return storage.ErrBlobNotFound
		}
		return fmt.Errorf("gridfs delete failed: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB
func (s *GridFSStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
