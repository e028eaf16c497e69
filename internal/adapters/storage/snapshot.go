package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

type objectDownloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// Snapshot copies the sqlite database file between local disk and one S3 object, so a
// stateless runtime can restore the store at start and persist it after writes.
type Snapshot struct {
	bucket     string
	key        string
	localPath  string
	downloader objectDownloader
	uploader   objectUploader
}

// NewSnapshot creates a snapshot of localPath stored at s3://bucket/key
func NewSnapshot(client *s3.Client, bucket, key, localPath string) *Snapshot {
	return &Snapshot{
		bucket:     bucket,
		key:        key,
		localPath:  localPath,
		downloader: manager.NewDownloader(client),
		uploader:   manager.NewUploader(client),
	}
}

// LocalPath returns the database file location
func (s *Snapshot) LocalPath() string {
	return s.localPath
}

// Restore downloads the object over the local file. It reports false when no snapshot exists yet.
func (s *Snapshot) Restore(ctx context.Context) (bool, error) {
	tmp := s.localPath + ".download"
	f, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Errorf("failed to create snapshot file: %w", err)
	}

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(tmp)
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			log.Info().Str("bucket", s.bucket).Str("key", s.key).Msg("no database snapshot yet, starting empty")
			return false, nil
		}
		return false, fmt.Errorf("failed to download database snapshot: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return false, fmt.Errorf("failed to write snapshot file: %w", closeErr)
	}
	if err := os.Rename(tmp, s.localPath); err != nil {
		return false, fmt.Errorf("failed to install snapshot: %w", err)
	}
	log.Info().Int64("bytes", n).Str("key", s.key).Msg("restored database snapshot")
	return true, nil
}

// Persist uploads the local file
func (s *Snapshot) Persist(ctx context.Context) error {
	f, err := os.Open(s.localPath)
	if err != nil {
		return fmt.Errorf("failed to open database file: %w", err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload database snapshot: %w", err)
	}
	log.Debug().Str("key", s.key).Msg("persisted database snapshot")
	return nil
}
