package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type objectStoreStub struct {
	signedURL     string
	signedErr     error
	downloadData  []byte
	downloadErr   error
	downloadCalls int
}

func (s *objectStoreStub) PresignedGet(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	return s.signedURL, s.signedErr
}

func (s *objectStoreStub) Download(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	s.downloadCalls++
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	return io.NopCloser(bytes.NewReader(s.downloadData)), nil
}

func newTestResolver(store ObjectStore) *Resolver {
	return NewResolver(store, Config{Bucket: "test-bucket"}, zerolog.Nop())
}

func TestResolveHTTPURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote content"))
	}))
	defer server.Close()

	resolver := newTestResolver(nil)
	artifact, err := resolver.Resolve(context.Background(), server.URL+"/essay.txt", "text/plain")
	require.NoError(t, err)
	defer artifact.Release()

	require.Equal(t, []byte("remote content"), artifact.Bytes)
	require.FileExists(t, artifact.LocalPath)

	artifact.Release()
	require.NoFileExists(t, artifact.LocalPath)
}

func TestResolveHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resolver := newTestResolver(nil)
	_, err := resolver.Resolve(context.Background(), server.URL+"/missing.txt", "")
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "http_url", fetchErr.Branch)
}

func TestResolveEmptyReference(t *testing.T) {
	resolver := newTestResolver(nil)
	_, err := resolver.Resolve(context.Background(), "   ", "")

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
}

func TestResolveLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0600))

	resolver := newTestResolver(nil)
	artifact, err := resolver.Resolve(context.Background(), path, "")
	require.NoError(t, err)
	defer artifact.Release()

	require.Equal(t, []byte("package main"), artifact.Bytes)
	require.Equal(t, path, artifact.LocalPath)

	// Local files are not owned by the resolver and must survive Release.
	artifact.Release()
	require.FileExists(t, path)
}

func TestResolveObjectPathViaSignedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("signed content"))
	}))
	defer server.Close()

	store := &objectStoreStub{signedURL: server.URL + "/signed"}
	resolver := newTestResolver(store)

	artifact, err := resolver.Resolve(context.Background(), "submissions/42/report.pdf", "application/pdf")
	require.NoError(t, err)
	defer artifact.Release()

	require.Equal(t, []byte("signed content"), artifact.Bytes)
	require.Zero(t, store.downloadCalls)
}

func TestResolveObjectPathFallsBackToNativeDownload(t *testing.T) {
	store := &objectStoreStub{
		signedErr:    fmt.Errorf("presign unavailable"),
		downloadData: []byte("native content"),
	}
	resolver := newTestResolver(store)

	artifact, err := resolver.Resolve(context.Background(), "submissions/42/report.pdf", "")
	require.NoError(t, err)
	defer artifact.Release()

	require.Equal(t, []byte("native content"), artifact.Bytes)
	require.Equal(t, 1, store.downloadCalls)
}

func TestResolveObjectPathBothRoutesFail(t *testing.T) {
	store := &objectStoreStub{
		signedErr:   fmt.Errorf("presign unavailable"),
		downloadErr: fmt.Errorf("object not found"),
	}
	resolver := newTestResolver(store)

	_, err := resolver.Resolve(context.Background(), "submissions/42/report.pdf", "")
	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "object_storage_path", fetchErr.Branch)
	require.ErrorContains(t, err, "object not found")
}

func TestResolveObjectPathWithoutStore(t *testing.T) {
	resolver := newTestResolver(nil)

	_, err := resolver.Resolve(context.Background(), "submissions/42/report.pdf", "")
	require.ErrorContains(t, err, "object storage is not configured")
}

func TestArtifactReleaseIdempotent(t *testing.T) {
	resolver := newTestResolver(nil)
	artifact, err := resolver.spill([]byte("data"), "submissions/1/a.txt", "text/plain")
	require.NoError(t, err)
	require.FileExists(t, artifact.LocalPath)

	artifact.Release()
	artifact.Release()
	artifact.Release()
	require.NoFileExists(t, artifact.LocalPath)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Reference: "submissions/1/a.txt", Branch: "object_storage_path", Err: cause}
	require.ErrorIs(t, err, cause)
}

func TestTempExtension(t *testing.T) {
	require.Equal(t, ".pdf", tempExtension("something", "application/pdf"))
	require.Equal(t, ".txt", tempExtension("essay.txt", ""))
	require.Equal(t, ".tmp", tempExtension("https://example.com/file.pdf?sig=abc", ""))
}
