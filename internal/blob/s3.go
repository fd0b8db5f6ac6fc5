package blob

import (
	"context"

	s3store "github.com/TatyanaKovaleva/rethinkdb/internal/infra/blob/s3"
)

// S3Config re-exports the explicit S3 construction parameters.
type S3Config = s3store.Config

// NewS3 returns an archive store over an S3-compatible backend.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// OpenS3FromEnv constructs an S3 archive store from process environment.
func OpenS3FromEnv(ctx context.Context) (Store, error) {
	return s3store.OpenFromEnv(ctx)
}
