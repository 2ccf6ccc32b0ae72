package content

import "bytes"

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// hasValidImageSignature checks the leading bytes of the payload against the
// on-disk signature for the declared MIME type. Unknown image types only need
// a minimal amount of data to pass.
func hasValidImageSignature(data []byte, mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
	case "image/png":
		return len(data) >= 8 && bytes.Equal(data[:8], pngSignature)
	case "image/gif":
		return len(data) >= 3 && bytes.Equal(data[:3], []byte("GIF"))
	case "image/webp":
		return len(data) >= 12 &&
			bytes.Equal(data[:4], []byte("RIFF")) &&
			bytes.Equal(data[8:12], []byte("WEBP"))
	default:
		return len(data) > 100
	}
}
