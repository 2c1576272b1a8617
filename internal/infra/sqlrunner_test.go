package infra

import "testing"

func TestExtractMarker(t *testing.T) {
	query := "--sql 0b6f9d8e-3c41-4f7a-9f0e-2f1f3c7f5a10\nselect 1\nfrom users"
	marker, body, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker returned error: %v", err)
	}
	if marker != "0b6f9d8e-3c41-4f7a-9f0e-2f1f3c7f5a10" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1\nfrom users" {
		t.Fatalf("body = %q", body)
	}
}

func TestExtractMarkerRejectsUnmarkedQueries(t *testing.T) {
	for _, q := range []string{
		"select 1",
		"--sql not-a-uuid\nselect 1",
		"",
	} {
		if _, _, err := extractMarker(q); err == nil {
			t.Fatalf("extractMarker(%q) accepted an invalid marker", q)
		}
	}
}
