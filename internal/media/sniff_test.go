package media

import (
	"encoding/base64"
	"strings"
	"testing"
)

var (
	samplePNG  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	sampleJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	sampleWEBP = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "png", data: samplePNG, want: MimePNG},
		{name: "jpeg", data: sampleJPEG, want: MimeJPEG},
		{name: "webp", data: sampleWEBP, want: MimeWEBP},
		{name: "riff without webp", data: []byte("RIFF\x24\x00\x00\x00WAVEfmt "), want: ""},
		{name: "gif", data: []byte("GIF89a......"), want: ""},
		{name: "text claiming png", data: []byte("hello, world"), want: ""},
		{name: "short", data: []byte{0xFF, 0xD8}, want: ""},
		{name: "empty", data: nil, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sniff(tc.data); got != tc.want {
				t.Fatalf("Sniff() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAcceptedAndExtension(t *testing.T) {
	if !Accepted("image/JPG") {
		t.Fatalf("image/jpg alias should be accepted")
	}
	if !Accepted("image/png; charset=binary") {
		t.Fatalf("parameters should be ignored")
	}
	if Accepted("image/gif") {
		t.Fatalf("gif must not be accepted")
	}
	if got := Extension("image/jpeg"); got != ".jpg" {
		t.Fatalf("Extension(jpeg) = %q", got)
	}
	if got := Extension("application/octet-stream"); got != ".bin" {
		t.Fatalf("Extension(unknown) = %q", got)
	}
}

func TestBase64DecodedLen(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 5, 1024, 1025} {
		encoded := base64.StdEncoding.EncodeToString(make([]byte, n))
		if got := Base64DecodedLen(encoded); got != int64(n) {
			t.Fatalf("Base64DecodedLen(len %d) = %d", n, got)
		}
	}
}

func TestBase64DecodedLenIgnoresLineWrapping(t *testing.T) {
	data := make([]byte, 3000)
	encoded := base64.StdEncoding.EncodeToString(data)
	var wrapped strings.Builder
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		wrapped.WriteString(encoded[i:end])
		wrapped.WriteString("\r\n")
	}
	if got := Base64DecodedLen(" " + wrapped.String()); got != int64(len(data)) {
		t.Fatalf("Base64DecodedLen(wrapped) = %d, want %d", got, len(data))
	}
}
