package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"bluecut/internal/jobs"
)

const workerSecretHeader = "X-Worker-Secret"

type callbackRequest struct {
	JobID        string `json:"jobId"`
	OK           bool   `json:"ok"`
	Error        string `json:"error"`
	OutputBase64 string `json:"outputBase64"`
	OutputMime   string `json:"outputMime"`
}

// workerAuthorized compares the shared secret in constant time. An unset
// secret authorizes nobody.
func (a *App) workerAuthorized(r *http.Request) bool {
	got := r.Header.Get(workerSecretHeader)
	if got == "" || a.WorkerSecret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.WorkerSecret)) == 1
}

func (a *App) JobsCallback(w http.ResponseWriter, r *http.Request) {
	if !a.workerAuthorized(r) {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}
	// base64 inflates by 4/3; allow for the JSON envelope on top.
	maxBody := a.Jobs.Config().MaxOutputBytes/3*4 + 64<<10
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			a.error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Output too large.")
			return
		}
		a.error(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid JSON body.")
		return
	}

	err := a.Jobs.ApplyCallback(r.Context(), req.JobID, jobs.Outcome{
		OK:           req.OK,
		Error:        req.Error,
		OutputBase64: req.OutputBase64,
		OutputMime:   req.OutputMime,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}
