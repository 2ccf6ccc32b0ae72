package content

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestProcessor() *Processor {
	return NewProcessor(4, zerolog.Nop())
}

func TestProcessInlineText(t *testing.T) {
	unit := newTestProcessor().ProcessInline("hello world", "")

	require.Equal(t, KindText, unit.Kind)
	require.Equal(t, "hello world", unit.Text)
	require.Equal(t, "text/plain", unit.MIME)
}

func TestProcessInlineCodeHint(t *testing.T) {
	unit := newTestProcessor().ProcessInline("package main", "main.go")
	require.Equal(t, KindCode, unit.Kind)
}

func TestProcessPlainTextFile(t *testing.T) {
	units := newTestProcessor().Process(FileMeta{
		Name: "essay.txt",
		MIME: "text/plain",
		Data: []byte("my essay"),
	})

	require.Len(t, units, 1)
	require.Equal(t, KindText, units[0].Kind)
	require.Equal(t, "my essay", units[0].Text)
}

func TestProcessCodeFileByExtension(t *testing.T) {
	units := newTestProcessor().Process(FileMeta{
		Name: "solution.py",
		MIME: "text/plain",
		Data: []byte("print('hi')"),
	})

	require.Len(t, units, 1)
	require.Equal(t, KindCode, units[0].Kind)
}

func TestProcessHTMLStripsMarkup(t *testing.T) {
	units := newTestProcessor().Process(FileMeta{
		Name: "page.html",
		MIME: "text/html",
		Data: []byte(`<p>visible</p><script>alert("x")</script>`),
	})

	require.Len(t, units, 1)
	require.Contains(t, units[0].Text, "visible")
	require.NotContains(t, units[0].Text, "script")
	require.NotContains(t, units[0].Text, "alert")
}

func TestProcessInvalidUTF8DegradesToFallback(t *testing.T) {
	units := newTestProcessor().Process(FileMeta{
		Name: "essay.txt",
		MIME: "text/plain",
		Data: []byte{0xFF, 0xFE, 0xFD},
	})

	require.Len(t, units, 1)
	require.Equal(t, KindText, units[0].Kind)
	require.Contains(t, units[0].Text, "Failed to process")
}

func TestProcessCSVDescription(t *testing.T) {
	var b strings.Builder
	b.WriteString("name,score,grade\n")
	for i := 0; i < 10; i++ {
		b.WriteString("alice,90,A\n")
	}

	units := newTestProcessor().Process(FileMeta{
		Name: "results.csv",
		MIME: "text/csv",
		Data: []byte(b.String()),
	})

	require.Len(t, units, 1)
	require.Equal(t, KindDocument, units[0].Kind)
	require.Contains(t, units[0].Text, "10 data rows and 3 columns")
	require.Contains(t, units[0].Text, "Headers: name, score, grade")
	require.Equal(t, 5, strings.Count(units[0].Text, "alice,90,A"))
}

func TestProcessEmptyCSVDegradesToFallback(t *testing.T) {
	units := newTestProcessor().Process(FileMeta{
		Name: "empty.csv",
		MIME: "text/csv",
		Data: []byte("  \n"),
	})

	require.Len(t, units, 1)
	require.Contains(t, units[0].Text, "Failed to process")
}

func TestProcessUnextractableDocumentGetsPlaceholder(t *testing.T) {
	units := newTestProcessor().Process(FileMeta{
		Name: "report.pdf",
		MIME: "application/pdf",
		Data: []byte("%PDF-1.7 binary stuff"),
	})

	require.Len(t, units, 1)
	require.Equal(t, KindDocument, units[0].Kind)
	require.Contains(t, units[0].Text, "application/pdf")
	require.Contains(t, units[0].Text, "extraction is not available")
}

func TestProcessImageKeepsBytes(t *testing.T) {
	data := append([]byte{0xFF, 0xD8}, bytes.Repeat([]byte{0x01}, 64)...)
	units := newTestProcessor().Process(FileMeta{
		Name: "photo.jpg",
		MIME: "image/jpeg",
		Data: data,
	})

	require.Len(t, units, 1)
	require.Equal(t, KindImage, units[0].Kind)
	require.Equal(t, data, units[0].Data)
	require.Empty(t, units[0].Text)
}

func TestProcessDetectsMIMEWhenMissing(t *testing.T) {
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0}, 32)...)
	units := newTestProcessor().Process(FileMeta{
		Name: "drawing",
		MIME: "",
		Data: png,
	})

	require.Len(t, units, 1)
	require.Equal(t, KindImage, units[0].Kind)
	require.Equal(t, "image/png", units[0].MIME)
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		mime string
		name string
		kind Kind
	}{
		{"text/plain", "essay.txt", KindText},
		{"text/plain", "main.go", KindCode},
		{"text/x-python", "anything", KindCode},
		{"image/png", "a.png", KindImage},
		{"application/pdf", "a.pdf", KindDocument},
		{"text/csv", "a.csv", KindDocument},
		{"text/html; charset=utf-8", "page.html", KindText},
		{"application/octet-stream", "blob.bin", KindDocument},
	}

	for _, tc := range cases {
		require.Equal(t, tc.kind, KindOf(tc.mime, tc.name), "mime=%s name=%s", tc.mime, tc.name)
	}
}

func TestImageSignatures(t *testing.T) {
	require.True(t, hasValidImageSignature([]byte{0xFF, 0xD8, 0x00}, "image/jpeg"))
	require.False(t, hasValidImageSignature([]byte{0x00, 0x00}, "image/jpeg"))
	require.True(t, hasValidImageSignature(pngSignature, "image/png"))
	require.False(t, hasValidImageSignature([]byte("notpng00"), "image/png"))
	require.True(t, hasValidImageSignature([]byte("GIF89a"), "image/gif"))

	webp := append([]byte("RIFF"), 0, 0, 0, 0)
	webp = append(webp, []byte("WEBP")...)
	require.True(t, hasValidImageSignature(webp, "image/webp"))
	require.False(t, hasValidImageSignature([]byte("RIFFxxxxNOPE"), "image/webp"))

	require.True(t, hasValidImageSignature(bytes.Repeat([]byte{1}, 200), "image/heic"))
	require.False(t, hasValidImageSignature([]byte{1, 2, 3}, "image/heic"))
}
