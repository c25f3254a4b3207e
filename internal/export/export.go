// Package export writes exported layers to a local directory, a writer or
// an S3 bucket.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ContentType of GeoJSON documents.
const ContentType = "application/geo+json"

// Dest receives exported documents.
type Dest interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// LocalDir writes into a directory, creating it when needed.
type LocalDir struct{ Path string }

func (l LocalDir) Write(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(l.Path, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(l.Path, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// File writes to a fixed path regardless of the document name.
type File struct{ Path string }

func (f File) Write(_ context.Context, _ string, data []byte) (string, error) {
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		return "", err
	}
	return f.Path, nil
}

// Writer copies documents to W, one per line.
type Writer struct{ W io.Writer }

func (w Writer) Write(_ context.Context, _ string, data []byte) (string, error) {
	if _, err := w.W.Write(append(data, '\n')); err != nil {
		return "", err
	}
	return "-", nil
}

// PutObjectAPI is the part of the S3 client used by S3.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads documents under Prefix in Bucket.
type S3 struct {
	Bucket string
	Prefix string
	Client PutObjectAPI
}

// NewS3 returns an S3 destination using the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix string) (S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return S3{}, err
	}
	return S3{Bucket: bucket, Prefix: prefix, Client: s3.NewFromConfig(cfg)}, nil
}

func (s S3) Write(ctx context.Context, name string, data []byte) (string, error) {
	key := path.Join(s.Prefix, name)
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", s.Bucket, key, err)
	}
	return "s3://" + s.Bucket + "/" + key, nil
}

// Parse selects a destination from a target string: "-" or empty for w,
// s3://bucket/prefix for S3, a path ending in a separator or naming an
// existing directory for LocalDir, any other path for File.
func Parse(ctx context.Context, target string, w io.Writer) (Dest, error) {
	switch {
	case target == "" || target == "-":
		return Writer{W: w}, nil
	case strings.HasPrefix(target, "s3://"):
		u, err := url.Parse(target)
		if err != nil {
			return nil, err
		}
		if u.Host == "" {
			return nil, fmt.Errorf("s3 target %q has no bucket", target)
		}
		return NewS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	case strings.HasSuffix(target, string(os.PathSeparator)):
		return LocalDir{Path: target}, nil
	}
	if fi, err := os.Stat(target); err == nil && fi.IsDir() {
		return LocalDir{Path: target}, nil
	}
	return File{Path: target}, nil
}

// FileName names the export of table taken at t.
func FileName(table string, t time.Time) string {
	return fmt.Sprintf("%s_%s.geojson", table, t.Format("2006-01-02T15-04-05"))
}
