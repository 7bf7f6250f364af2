// Package object implements core.FileStorage on Backblaze B2.
package object

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// submissionsPrefix is the only area of the bucket student uploads may land in.
const submissionsPrefix = "submissions/"

type b2Storage struct {
	client *b2.Client
	bucket *b2.Bucket
}

var _ core.FileStorage = (*b2Storage)(nil) // interface compliance check

func NewB2Storage(ctx context.Context, conf *core.Config) (*b2Storage, error) {
	client, err := b2.NewClient(ctx, conf.Storage.AccountID, conf.Storage.AppKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}

	bucket, err := client.Bucket(ctx, conf.Storage.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Storage{client: client, bucket: bucket}, nil
}

// CleanPath normalizes an object path and pins student uploads under the
// submissions area regardless of the requested destination.
func CleanPath(actorRole, p string) string {
	p = path.Clean("/" + p)[1:] // no traversal out of the bucket root
	if actorRole == user.RoleStudent && !strings.HasPrefix(p, submissionsPrefix) {
		p = submissionsPrefix + p
	}
	return p
}

func (s *b2Storage) Upload(ctx context.Context, actorRole, p string, up core.Upload) (core.FileInfo, error) {
	p = CleanPath(actorRole, p)

	obj := s.bucket.Object(p)
	w := obj.NewWriter(ctx)
	n, err := io.Copy(w, up.Body)
	if err != nil {
		_ = w.Close()
		return core.FileInfo{}, errors.Wrap(err, "writing object")
	}
	if err = w.Close(); err != nil {
		return core.FileInfo{}, errors.Wrap(err, "closing object writer")
	}

	return core.FileInfo{
		FileName: up.Name,
		FileURL:  fmt.Sprintf("%s/file/%s/%s", s.bucket.BaseURL(), s.bucket.Name(), p),
		FilePath: p,
		FileSize: n,
	}, nil
}

func (s *b2Storage) Delete(ctx context.Context, p string) error {
	if err := s.bucket.Object(p).Delete(ctx); err != nil {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}
