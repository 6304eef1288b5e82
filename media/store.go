// Package media provides read access to announcement assets in the
// object store, plus a small on-disk spool holding the assets of the
// current preload window.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store reads announcement assets from an S3 bucket.
type Store struct {
	client manager.DownloadAPIClient
	bucket string
}

// NewStore builds a Store against the given bucket. profile selects a
// shared AWS config profile; empty falls back to the default
// credential chain.
func NewStore(ctx context.Context, bucket, profile string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("no s3 bucket provided")
	}

	ctxCfg, cancelCfg := context.WithTimeout(ctx, 3*time.Second)
	defer cancelCfg()

	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctxCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load aws config, %w", err)
	}

	return &Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// Open streams one object from the bucket. The caller must close the
// returned reader.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", 0, fmt.Errorf("unable to get object from s3, %s, %w", key, err)
	}
	return out.Body, aws.ToString(out.ContentType), aws.ToInt64(out.ContentLength), nil
}

// StorageKey maps an announcement media locator to an object-store
// key. Absolute and protocol-relative URLs point outside the store
// and report false. Relative locators are cleaned so a crafted value
// cannot climb out of the spool directory.
func StorageKey(mediaURL string) (string, bool) {
	if mediaURL == "" {
		return "", false
	}
	u, err := url.Parse(mediaURL)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}

	// query and fragment are not part of the object key
	key := path.Clean("/" + strings.TrimPrefix(u.Path, "/"))[1:]
	if key == "" {
		return "", false
	}
	return key, true
}
