package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusQueued, JobStatusProcessing, true},
		{JobStatusQueued, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusDone, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusFailed, JobStatusProcessing, true},
		{JobStatusFailed, JobStatusDone, false},
		{JobStatusDone, JobStatusProcessing, false},
		{JobStatusDone, JobStatusFailed, false},
		{JobStatusProcessing, JobStatusQueued, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNormalizeOutputFormat(t *testing.T) {
	tests := map[string]OutputFormat{
		"png":   OutputFormatPNG,
		" jpg ": OutputFormatJPG,
		"jpeg":  OutputFormatJPG,
		"WebP":  OutputFormatWEBP,
		"gif":   OutputFormatPNG,
		"":      OutputFormatPNG,
	}
	for in, want := range tests {
		if got := NormalizeOutputFormat(in); got != want {
			t.Fatalf("NormalizeOutputFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClampQuality(t *testing.T) {
	tests := map[int]int{0: 90, 5: 10, 10: 10, 75: 75, 100: 100, 150: 100}
	for in, want := range tests {
		if got := ClampQuality(in); got != want {
			t.Fatalf("ClampQuality(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestJobHasInput(t *testing.T) {
	j := Job{InputKey: InputKeyPending}
	if j.HasInput() {
		t.Fatalf("pending key reported as persisted input")
	}
	j.InputKey = "inputs/abc.png"
	if !j.HasInput() {
		t.Fatalf("persisted key not reported as input")
	}
}
