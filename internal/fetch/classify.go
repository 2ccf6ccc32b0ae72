package fetch

import (
	"net/url"
	"os"
	"strings"
)

// Kind tags the outcome of reference classification. The policy is ordered and
// total: every reference maps to exactly one kind, and anything unrecognised
// fails open toward a network fetch rather than being silently treated as a
// local file.
type Kind int

const (
	// KindHTTPURL is a plain http(s) resource, including signed storage URLs.
	KindHTTPURL Kind = iota
	// KindObjectStorageURI is a bucket-qualified storage URI such as s3://bucket/key.
	KindObjectStorageURI
	// KindObjectStoragePath is a bare object key following the submission
	// storage convention, e.g. "submissions/42/report.pdf".
	KindObjectStoragePath
	// KindLocal is a path that exists on the local filesystem.
	KindLocal
)

// String returns the branch label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindHTTPURL:
		return "http_url"
	case KindObjectStorageURI:
		return "object_storage_uri"
	case KindObjectStoragePath:
		return "object_storage_path"
	case KindLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Classification is the resolved interpretation of a submission file reference.
type Classification struct {
	Kind   Kind
	Bucket string
	Object string
}

// Storage path prefixes reserved for submission uploads.
var storagePathPrefixes = []string{"submissions/", "anonymous-submissions/"}

// Hosts that identify a storage URL even when the rest of the reference is odd.
var storageHosts = []string{"storage.googleapis.com", "googleusercontent.com"}

// Classify maps a raw reference to a fetch strategy. First match wins:
//
//  1. syntactically valid absolute http(s) URL, or a reference naming a known
//     storage host, is remote HTTP;
//  2. an object-storage protocol prefix (s3:// or gs://) is a native-SDK URI;
//  3. a reserved submission prefix with forward-slash separators is an object
//     storage path;
//  4. a path that exists locally is local;
//  5. everything else defaults to remote HTTP.
func Classify(reference string) Classification {
	if u, err := url.Parse(reference); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return Classification{Kind: KindHTTPURL}
	}

	for _, host := range storageHosts {
		if strings.Contains(reference, host) {
			return Classification{Kind: KindHTTPURL}
		}
	}

	for _, scheme := range []string{"s3://", "gs://"} {
		if strings.HasPrefix(reference, scheme) {
			bucket, object := splitBucketObject(strings.TrimPrefix(reference, scheme))
			return Classification{Kind: KindObjectStorageURI, Bucket: bucket, Object: object}
		}
	}

	if isStoragePath(reference) {
		return Classification{Kind: KindObjectStoragePath, Object: reference}
	}

	if _, err := os.Stat(reference); err == nil {
		return Classification{Kind: KindLocal}
	}

	return Classification{Kind: KindHTTPURL}
}

func isStoragePath(reference string) bool {
	if strings.HasPrefix(reference, "/") || strings.Contains(reference, `\`) {
		return false
	}

	if !strings.Contains(reference, "/") {
		return false
	}

	for _, prefix := range storagePathPrefixes {
		if strings.HasPrefix(reference, prefix) {
			return true
		}
	}

	return false
}

func splitBucketObject(path string) (string, string) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}

	return parts[0], parts[1]
}
