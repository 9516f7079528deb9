package server

import (
	"bytes"
	"mime"
)

// sniffLen is how many leading bytes sniffImageType needs.
// WEBP needs at least 12 bytes: "RIFF" + 4 bytes size + "WEBP"
const sniffLen = 12

// sniffImageType reads magic bytes to determine an image content type.
// Returns an empty string if unknown.
func sniffImageType(header []byte) string {
	n := len(header)
	if n < 3 {
		return ""
	}

	// WebP: RIFF....WEBP
	if n >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "WEBP" {
		return "image/webp"
	}

	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if n >= 8 && bytes.Equal(header[0:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// GIF: GIF87a or GIF89a
	if n >= 6 && (string(header[0:6]) == "GIF87a" || string(header[0:6]) == "GIF89a") {
		return "image/gif"
	}

	// JPEG: FF D8 FF
	if bytes.Equal(header[0:3], []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// ISO BMFF: ....ftypheic / ....ftypavif
	if n >= 12 && string(header[4:8]) == "ftyp" {
		switch string(header[8:12]) {
		case "heic", "heix", "mif1":
			return "image/heic"
		case "avif":
			return "image/avif"
		}
	}

	return ""
}

// needsSniff reports whether an upstream content type says nothing useful
func needsSniff(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return true
	}
	return mediaType == "application/octet-stream" || mediaType == "binary/octet-stream"
}
