package artifact

import "context"

// Open returns an S3Store when a bucket is configured and a FileStore rooted
// at dir otherwise.
func Open(ctx context.Context, dir string, s3cfg S3Config) (Store, error) {
	if s3cfg.Bucket == "" {
		return NewFileStore(dir), nil
	}
	if s3cfg.Prefix == "" {
		s3cfg.Prefix = dir
	}
	return NewS3Store(ctx, s3cfg)
}
