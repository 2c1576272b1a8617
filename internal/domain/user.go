package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OutputFormat enumerates the result encodings a user can ask the worker for.
type OutputFormat string

const (
	OutputFormatPNG  OutputFormat = "PNG"
	OutputFormatJPG  OutputFormat = "JPG"
	OutputFormatWEBP OutputFormat = "WEBP"
)

const (
	DefaultQuality = 90
	MinQuality     = 10
	MaxQuality     = 100
)

var upper = cases.Upper(language.Und)

// NormalizeOutputFormat maps free-form input onto a supported format,
// falling back to PNG.
func NormalizeOutputFormat(raw string) OutputFormat {
	switch f := OutputFormat(upper.String(strings.TrimSpace(raw))); f {
	case OutputFormatPNG, OutputFormatJPG, OutputFormatWEBP:
		return f
	case "JPEG":
		return OutputFormatJPG
	}
	return OutputFormatPNG
}

// ClampQuality keeps q within 10..100; zero means the default.
func ClampQuality(q int) int {
	switch {
	case q == 0:
		return DefaultQuality
	case q < MinQuality:
		return MinQuality
	case q > MaxQuality:
		return MaxQuality
	}
	return q
}

// User carries the account fields the job engine reads. Only Credits is ever
// written by the engine.
type User struct {
	ID             string
	Email          string
	Credits        int
	CreditsTotal   int
	OutputFormat   OutputFormat
	DefaultQuality int
	CreatedAt      time.Time
}
