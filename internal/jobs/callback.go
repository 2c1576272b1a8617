package jobs

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	"bluecut/internal/domain"
	"bluecut/internal/media"
)

const (
	defaultFailureMessage = "Processing failed"
	inputMissingMessage   = "Input file missing."
)

// Outcome is what a worker reports for a job.
type Outcome struct {
	OK           bool
	Error        string
	OutputBase64 string
	OutputMime   string
}

// failureMessage trims the worker's text to the stored maximum.
func failureMessage(raw string) string {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return defaultFailureMessage
	}
	if utf8.RuneCountInString(msg) <= domain.MaxErrorLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:domain.MaxErrorLength])
}

// ApplyCallback records a worker's result. Callbacks for terminal jobs are
// accepted and ignored.
func (s *Service) ApplyCallback(ctx context.Context, jobID string, out Outcome) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.NewError(domain.ErrInvalidInput, "Missing jobId.")
	}
	job, err := s.store.Jobs().GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	log := s.jobLogger(job)
	if job.Status.Terminal() {
		log.Debug().Str("status", string(job.Status)).Msg("jobs: callback for finished job ignored")
		return nil
	}

	if !out.OK {
		_, err := s.fail(ctx, jobID, failureMessage(out.Error), nil)
		return err
	}

	payload := strings.TrimSpace(out.OutputBase64)
	if payload == "" {
		return domain.NewError(domain.ErrInvalidInput, "Missing outputBase64.")
	}
	if s.cfg.MaxOutputBytes > 0 && media.Base64DecodedLen(payload) > s.cfg.MaxOutputBytes {
		return domain.NewError(domain.ErrPayloadTooLarge, "Output too large.")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.NewError(domain.ErrInvalidInput, "Invalid outputBase64.")
	}
	mime := media.Sniff(data)
	if !media.Accepted(mime) {
		return domain.NewError(domain.ErrUnsupportedOutputType, "Unsupported output type.")
	}
	if declared := media.NormalizeMime(out.OutputMime); declared != "" && declared != mime {
		log.Debug().Str("declared_mime", declared).Str("sniffed_mime", mime).Msg("jobs: worker mislabeled output")
	}
	return s.complete(ctx, jobID, data, mime)
}

// CompleteLoopback publishes the job's input as its output. A missing input
// fails the job and refunds it.
func (s *Service) CompleteLoopback(ctx context.Context, jobID string) error {
	job, err := s.store.Jobs().GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	data, err := s.files.Read(ctx, job.InputKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidKey) {
			if _, ferr := s.fail(ctx, jobID, inputMissingMessage, nil); ferr != nil {
				return ferr
			}
			return domain.ErrInputMissing
		}
		return err
	}
	mime := media.Sniff(data)
	if mime == "" {
		mime = job.InputMime
	}
	return s.complete(ctx, jobID, data, mime)
}
