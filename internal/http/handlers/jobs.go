package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bluecut/internal/domain"
	"bluecut/internal/jobs"
)

// multipartOverhead covers the form boundaries and headers around the file.
const multipartOverhead = 1 << 20

type jobDTO struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	Error             *string   `json:"error"`
	CreditsCost       int       `json:"creditsCost"`
	InputOriginalName *string   `json:"inputOriginalName"`
	OutputMime        *string   `json:"outputMime"`
	OutputSize        *int64    `json:"outputSize"`
	OutputFormat      string    `json:"outputFormat"`
	Quality           int       `json:"quality"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func nullable[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}

func toJobDTO(j *domain.Job) jobDTO {
	return jobDTO{
		ID:                j.ID,
		Status:            string(j.Status),
		Error:             nullable(j.Error),
		CreditsCost:       j.CreditsCost,
		InputOriginalName: nullable(j.InputOriginalName),
		OutputMime:        nullable(j.OutputMime),
		OutputSize:        nullable(j.OutputSize),
		OutputFormat:      string(j.OutputFormat),
		Quality:           j.Quality,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}

func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	limit := a.Jobs.Config().MaxUploadBytes
	if r.ContentLength > limit+multipartOverhead {
		a.error(w, http.StatusRequestEntityTooLarge, "INVALID_FILE", fmt.Sprintf("File too large (max %d MB).", limit>>20))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			a.error(w, http.StatusRequestEntityTooLarge, "INVALID_FILE", fmt.Sprintf("File too large (max %d MB).", limit>>20))
			return
		}
		a.error(w, http.StatusBadRequest, "INVALID_FILE", "Expected a multipart form with a file.")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "INVALID_FILE", "Missing file.")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "INVALID_FILE", "Could not read file.")
		return
	}

	job, err := a.Jobs.Create(r.Context(), jobs.CreateInput{
		UserID:       a.currentUserID(r),
		Data:         data,
		DeclaredMime: header.Header.Get("Content-Type"),
		OriginalName: header.Filename,
	})
	if err != nil {
		var de *domain.Error
		switch {
		case errors.Is(err, domain.ErrPayloadTooLarge) && errors.As(err, &de):
			a.error(w, http.StatusRequestEntityTooLarge, "INVALID_FILE", de.Message)
		case errors.Is(err, domain.ErrInvalidInput) && errors.As(err, &de):
			a.error(w, http.StatusBadRequest, "INVALID_FILE", de.Message)
		default:
			a.writeError(w, r, err)
		}
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"ok": true, "jobId": job.ID, "status": job.Status})
}

func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	q := r.URL.Query()
	list, err := a.Jobs.List(r.Context(), userID, q.Get("q"), q.Get("status"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	used, included, err := a.Jobs.MonthlyUsage(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	items := make([]jobDTO, 0, len(list))
	for i := range list {
		items = append(items, toJobDTO(&list[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"ok":      true,
		"jobs":    items,
		"monthly": monthlyPayload{Included: included, Used: used},
	})
}

func (a *App) JobsExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var buf bytes.Buffer
	if err := a.Jobs.Export(r.Context(), a.currentUserID(r), q.Get("q"), q.Get("status"), &buf); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="jobs-export.csv"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *App) JobsGet(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "job": toJobDTO(job)})
}

func (a *App) JobsRetry(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Retry(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"ok": true, "job": toJobDTO(job)})
}

func (a *App) JobsDownload(w http.ResponseWriter, r *http.Request) {
	res, err := a.Jobs.Download(r.Context(), a.currentUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.Mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// JobsInput serves the uploaded file to the worker.
func (a *App) JobsInput(w http.ResponseWriter, r *http.Request) {
	if !a.workerAuthorized(r) {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}
	res, err := a.Jobs.Input(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	mime := res.Mime
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
