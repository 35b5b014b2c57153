// Package storage keeps uploaded photos in MongoDB GridFS buckets and hands
// back the public URL the API serves them from.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"civichero-be/apperr"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	IssueImages    = "issue-images"
	SolutionImages = "solution-images"

	// MaxImageSize caps a single upload.
	MaxImageSize = 10 << 20
)

var ErrFileNotFound = apperr.NotFound("File not found")

// File is an open stored object.
type File struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// GridFSStore stores files in one GridFS bucket per logical bucket name.
type GridFSStore struct {
	db      *mongo.Database
	baseURL string
}

// NewGridFSStore serves URLs under baseURL + "/files". An empty baseURL
// yields root-relative URLs.
func NewGridFSStore(db *mongo.Database, baseURL string) *GridFSStore {
	return &GridFSStore{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

func validBucket(name string) bool {
	return name == IssueImages || name == SolutionImages
}

// UniqueName suffixes a random token to filename so uploads never collide.
func UniqueName(filename string) string {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if ext == "." {
		ext = ""
	}
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, stem)
	if stem == "" || stem == "." {
		stem = "upload"
	}
	return fmt.Sprintf("%s-%s%s", stem, uuid.NewString()[:8], ext)
}

// URL is the public address of a stored file.
func (s *GridFSStore) URL(bucket, name string) string {
	return s.baseURL + path.Join("/files", bucket, name)
}

func (s *GridFSStore) bucket(ctx context.Context, name string) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, apperr.Network("File store unavailable", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = b.SetWriteDeadline(deadline)
		_ = b.SetReadDeadline(deadline)
	}
	return b, nil
}

// Upload stores an image and returns its public URL.
func (s *GridFSStore) Upload(ctx context.Context, bucketName, filename string, data []byte) (string, error) {
	if !validBucket(bucketName) {
		return "", apperr.Validation("unknown bucket " + bucketName)
	}
	if len(data) == 0 {
		return "", apperr.Validation("uploaded file is empty")
	}
	if len(data) > MaxImageSize {
		return "", apperr.Validation("uploaded file is too large")
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Validation("uploaded file must be an image")
	}

	b, err := s.bucket(ctx, bucketName)
	if err != nil {
		return "", err
	}

	name := UniqueName(filename)
	uploadOpts := options.GridFSUpload().SetMetadata(bson.M{"contentType": contentType})
	if _, err := b.UploadFromStream(name, bytes.NewReader(data), uploadOpts); err != nil {
		return "", apperr.Network("Failed to upload file", err)
	}
	return s.URL(bucketName, name), nil
}

// Open streams a stored file. The caller closes it.
func (s *GridFSStore) Open(ctx context.Context, bucketName, name string) (*File, error) {
	if !validBucket(bucketName) {
		return nil, ErrFileNotFound
	}
	b, err := s.bucket(ctx, bucketName)
	if err != nil {
		return nil, err
	}

	stream, err := b.OpenDownloadStreamByName(name)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, apperr.Network("Failed to open file", err)
	}

	contentType := "application/octet-stream"
	file := stream.GetFile()
	if len(file.Metadata) > 0 {
		if ct, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok {
			contentType = ct
		}
	}
	return &File{ReadCloser: stream, ContentType: contentType, Size: file.Length}, nil
}
