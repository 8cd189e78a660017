package security

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Magic byte signatures for the upload types the contact form sees in
// practice. Sniffing only picks the Content-Type for the MIME part; nothing
// is rejected or rewritten based on content.
var magicBytes = []struct {
	prefix []byte
	mime   string
}{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
	{[]byte("%PDF"), "application/pdf"},
}

// DetectContentType sniffs the MIME type from leading bytes, falling back
// to application/octet-stream for anything unrecognized.
func DetectContentType(data []byte) string {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(data, sig.prefix) {
			return sig.mime
		}
	}
	// RIFF is a generic container (WAV, AVI, ...); only the WEBP fourCC
	// at offset 8 makes it an image.
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}
	return "application/octet-stream"
}

// ImageDimensions decodes just the image header and returns its bounds.
// Supports jpeg/png/gif/webp; ok is false for anything else. Used for
// logging the size of uploaded damage photos.
func ImageDimensions(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
