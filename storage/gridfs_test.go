package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"civichero-be/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestUniqueName(t *testing.T) {
	a := UniqueName("photo.PNG")
	b := UniqueName("photo.PNG")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "photo-"))
	assert.True(t, strings.HasSuffix(a, ".png"))
}

func TestUniqueName_StripsPathsAndOddCharacters(t *testing.T) {
	name := UniqueName("../../etc/my photo?.jpg")
	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, " ")
	assert.True(t, strings.HasPrefix(name, "my-photo--"))

	assert.True(t, strings.HasPrefix(UniqueName(""), "upload-"))
}

func TestURL(t *testing.T) {
	s := NewGridFSStore(nil, "https://api.example.com/")
	assert.Equal(t, "https://api.example.com/files/issue-images/a.png", s.URL(IssueImages, "a.png"))

	rel := NewGridFSStore(nil, "")
	assert.Equal(t, "/files/solution-images/b.png", rel.URL(SolutionImages, "b.png"))
}

func TestUpload_RejectsBeforeTouchingTheStore(t *testing.T) {
	s := NewGridFSStore(nil, "")
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	_, err := s.Upload(ctx, "avatars", "a.png", png)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = s.Upload(ctx, IssueImages, "a.png", nil)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = s.Upload(ctx, IssueImages, "notes.txt", []byte("just some text"))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = s.Upload(ctx, IssueImages, "huge.png", append(png, make([]byte, MaxImageSize)...))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = s.Open(ctx, "avatars", "a.png")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestGridFSStore_RoundTrip(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())
	db := client.Database("civichero_files_" + uuid.NewString()[:8])
	defer db.Drop(context.Background())

	s := NewGridFSStore(db, "http://localhost:8080")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	url, err := s.Upload(ctx, SolutionImages, "fixed.png", png)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8080/files/solution-images/fixed-"))

	name := url[strings.LastIndex(url, "/")+1:]
	f, err := s.Open(ctx, SolutionImages, name)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, int64(len(png)), f.Size)

	_, err = s.Open(ctx, SolutionImages, "missing.png")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
