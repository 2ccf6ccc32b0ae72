package fetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyPolicy(t *testing.T) {
	cases := []struct {
		name      string
		reference string
		kind      Kind
	}{
		{"https url", "https://example.com/files/report.pdf", KindHTTPURL},
		{"http url", "http://example.com/essay.txt", KindHTTPURL},
		{"signed storage url", "https://storage.googleapis.com/bucket/key?X-Goog-Signature=abc", KindHTTPURL},
		{"storage host without scheme", "storage.googleapis.com/bucket/key", KindHTTPURL},
		{"googleusercontent host", "https://lh3.googleusercontent.com/d/abc", KindHTTPURL},
		{"submission path", "submissions/42/report.pdf", KindObjectStoragePath},
		{"anonymous submission path", "anonymous-submissions/abc/essay.docx", KindObjectStoragePath},
		{"absolute path is not a storage path", "/submissions/42/report.pdf", KindHTTPURL},
		{"backslash is not a storage path", `submissions\42\report.pdf`, KindHTTPURL},
		{"bare word falls open to http", "report.pdf", KindHTTPURL},
		{"nonexistent relative path falls open to http", "missing/dir/file.txt", KindHTTPURL},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.kind, Classify(tc.reference).Kind)
		})
	}
}

func TestClassifyObjectStorageURI(t *testing.T) {
	c := Classify("s3://my-bucket/submissions/7/main.go")
	require.Equal(t, KindObjectStorageURI, c.Kind)
	require.Equal(t, "my-bucket", c.Bucket)
	require.Equal(t, "submissions/7/main.go", c.Object)

	c = Classify("gs://other-bucket/key.png")
	require.Equal(t, KindObjectStorageURI, c.Kind)
	require.Equal(t, "other-bucket", c.Bucket)
	require.Equal(t, "key.png", c.Object)

	c = Classify("s3://bucket-only")
	require.Equal(t, KindObjectStorageURI, c.Kind)
	require.Equal(t, "bucket-only", c.Bucket)
	require.Empty(t, c.Object)
}

func TestClassifyStoragePathKeepsObjectKey(t *testing.T) {
	c := Classify("submissions/42/file.pdf")
	require.Equal(t, KindObjectStoragePath, c.Kind)
	require.Equal(t, "submissions/42/file.pdf", c.Object)
}

func TestClassifyLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "essay.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0600))

	require.Equal(t, KindLocal, Classify(path).Kind)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "http_url", KindHTTPURL.String())
	require.Equal(t, "object_storage_uri", KindObjectStorageURI.String())
	require.Equal(t, "object_storage_path", KindObjectStoragePath.String())
	require.Equal(t, "local", KindLocal.String())
}
