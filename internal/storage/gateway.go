// Package storage keeps job inputs and outputs as blobs under a sandboxed
// root directory.
package storage

import (
	"context"
	"errors"
	"fmt"

	"bluecut/internal/domain"
	"bluecut/internal/media"
)

const (
	inputsPrefix  = "inputs/"
	outputsPrefix = "outputs/"
)

// Input describes an uploaded file.
type Input struct {
	JobID        string
	Data         []byte
	Mime         string
	OriginalName string
}

// StoredInput is what WriteInput recorded.
type StoredInput struct {
	Key          string
	Mime         string
	Size         int64
	OriginalName string
}

// StoredOutput is what WriteOutput recorded.
type StoredOutput struct {
	Key  string
	Mime string
	Size int64
}

// Gateway names blobs after their job and delegates the bytes to a FileStore.
type Gateway struct {
	files *FileStore
}

// NewGateway wraps files.
func NewGateway(files *FileStore) *Gateway {
	return &Gateway{files: files}
}

// InputKey is the key an input of the given MIME type is stored under.
func InputKey(jobID, mime string) string {
	return inputsPrefix + jobID + media.Extension(mime)
}

// OutputKey is the key an output of the given MIME type is stored under.
func OutputKey(jobID, mime string) string {
	return outputsPrefix + jobID + media.Extension(mime)
}

func (g *Gateway) WriteInput(ctx context.Context, in Input) (StoredInput, error) {
	if in.JobID == "" {
		return StoredInput{}, errors.New("storage: job id is required")
	}
	mime := media.NormalizeMime(in.Mime)
	key, err := g.files.Write(ctx, InputKey(in.JobID, mime), in.Data)
	if err != nil {
		return StoredInput{}, fmt.Errorf("storage: write input: %w", err)
	}
	return StoredInput{Key: key, Mime: mime, Size: int64(len(in.Data)), OriginalName: in.OriginalName}, nil
}

func (g *Gateway) WriteOutput(ctx context.Context, jobID, mime string, data []byte) (StoredOutput, error) {
	if jobID == "" {
		return StoredOutput{}, errors.New("storage: job id is required")
	}
	mime = media.NormalizeMime(mime)
	key, err := g.files.Write(ctx, OutputKey(jobID, mime), data)
	if err != nil {
		return StoredOutput{}, fmt.Errorf("storage: write output: %w", err)
	}
	return StoredOutput{Key: key, Mime: mime, Size: int64(len(data))}, nil
}

// Read returns the blob at key. Missing blobs yield domain.ErrNotFound and
// keys outside the root yield domain.ErrInvalidKey.
func (g *Gateway) Read(ctx context.Context, key string) ([]byte, error) {
	if key == "" || key == domain.InputKeyPending {
		return nil, domain.ErrNotFound
	}
	return g.files.Read(ctx, key)
}

// Exists reports whether key holds a blob.
func (g *Gateway) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" || key == domain.InputKeyPending {
		return false, nil
	}
	return g.files.Exists(ctx, key)
}

// Remove deletes the blob at key if any.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	if key == "" || key == domain.InputKeyPending {
		return nil
	}
	return g.files.Delete(ctx, key)
}
