// internal/web/upload.go
package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "cancercare-web/internal/common/errors"
	"cancercare-web/internal/prediction"
	"cancercare-web/internal/upload"
)

type uploadData struct {
	UploadID string
	FileName string
	// Preview is a data: URL built from the uploaded bytes after the MIME
	// check passed.
	Preview  template.URL
	Progress int
	Result   *prediction.PredictionResult
}

func uploadPageData(v upload.View) uploadData {
	return uploadData{
		UploadID: v.UploadID,
		FileName: v.FileName,
		Preview:  template.URL(v.Preview),
		Progress: v.Progress,
		Result:   v.Result,
	}
}

func (h *Handler) UploadForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageUploadForm, page{Data: uploadData{UploadID: uuid.NewString()}})
}

// SubmitUpload selects the posted file and runs the upload in the same
// request. Progress is published under the form's uploadId while it runs.
func (h *Handler) SubmitUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes())
	parseErr := r.ParseMultipartForm(h.maxUploadBytes())
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	uploadID := r.FormValue("uploadId")
	if _, err := uuid.Parse(uploadID); err != nil {
		uploadID = uuid.NewString()
	}
	flow := upload.NewFlow(uploadID, h.deps.Classifier, h.deps.ProgressStore, h.logger)

	if parseErr == nil {
		img, err := readFormFile(r)
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			h.errors.Log(r, apperrors.NewValidationError("unreadable upload", err))
		}
		if err == nil {
			if err := flow.Select(r.Context(), img); err != nil {
				v := flow.View()
				h.render(w, r, http.StatusBadRequest, pageUploadForm, page{Error: v.Notice, Data: uploadPageData(v)})
				return
			}
		}
	}

	_, err := flow.Upload(r.Context())
	v := flow.View()
	switch {
	case err == nil:
		h.render(w, r, http.StatusOK, pageUploadForm, page{Notice: v.Notice, Data: uploadPageData(v)})
	case apperrors.IsCode(err, apperrors.ErrCodeValidationFailed):
		h.render(w, r, http.StatusBadRequest, pageUploadForm, page{Error: v.Notice, Data: uploadPageData(v)})
	default:
		h.render(w, r, http.StatusBadGateway, pageUploadForm, page{Error: v.Notice, Data: uploadPageData(v)})
	}
}

func (h *Handler) UploadProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.deps.ProgressStore.Get(r.Context(), id)
	if errors.Is(err, upload.ErrProgressNotFound) {
		apperrors.WriteJSONError(w, http.StatusNotFound, "Unknown upload")
		return
	}
	if err != nil {
		h.errors.WriteJSON(w, r, http.StatusInternalServerError, "Something went wrong", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(p)
}

// readFormFile reads the "file" part of an already parsed multipart form.
func readFormFile(r *http.Request) (prediction.Image, error) {
	file, header, err := r.FormFile(prediction.FileField)
	if err != nil {
		return prediction.Image{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return prediction.Image{}, err
	}
	return prediction.Image{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
