package media

import (
	"log/slog"
	"path/filepath"
)

// Open builds the media store: S3 when a bucket is configured, local disk
// under dataDir otherwise.
func Open(s3cfg S3Config, dataDir string) (*Store, error) {
	if s3cfg.Bucket != "" {
		slog.Info("media store ready", "backend", "s3", "bucket", s3cfg.Bucket)
		return NewStore(NewS3FromConfig(s3cfg)), nil
	}
	dir := filepath.Join(dataDir, "media")
	local, err := NewLocal(dir)
	if err != nil {
		return nil, err
	}
	slog.Info("media store ready", "backend", "local", "dir", dir)
	return NewStore(local), nil
}
