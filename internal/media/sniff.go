// Package media identifies the image types the service accepts.
package media

import (
	"bytes"
	"strings"
	"unicode"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWEBP = "image/webp"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Sniff returns the MIME type implied by the leading bytes of data, or "" if
// data is not a PNG, JPEG or WebP image.
func Sniff(data []byte) string {
	switch {
	case len(data) >= len(pngSignature) && bytes.Equal(data[:len(pngSignature)], pngSignature):
		return MimePNG
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return MimeJPEG
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return MimeWEBP
	}
	return ""
}

// NormalizeMime lower-cases a declared content type, drops parameters and
// folds the non-standard image/jpg alias.
func NormalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if mime == "image/jpg" {
		return MimeJPEG
	}
	return mime
}

// Accepted reports whether mime is one of the supported image types.
func Accepted(mime string) bool {
	switch NormalizeMime(mime) {
	case MimePNG, MimeJPEG, MimeWEBP:
		return true
	}
	return false
}

// Extension returns the file extension, dot included, used when storing mime.
func Extension(mime string) string {
	switch NormalizeMime(mime) {
	case MimePNG:
		return ".png"
	case MimeJPEG:
		return ".jpg"
	case MimeWEBP:
		return ".webp"
	}
	return ".bin"
}

// Base64DecodedLen estimates the decoded size of a standard base64 payload
// without decoding it. Whitespace anywhere in s, such as line wrapping, is
// not counted.
func Base64DecodedLen(s string) int64 {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	padding := int64(0)
	if strings.HasSuffix(s, "==") {
		padding = 2
	} else if strings.HasSuffix(s, "=") {
		padding = 1
	}
	n := int64(len(s))*3/4 - padding
	if n < 0 {
		return 0
	}
	return n
}
