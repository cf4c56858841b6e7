package adaptor

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"member-onboarding/internal/dto/request"
	"member-onboarding/pkg/storage"
	"member-onboarding/pkg/utils"
)

const (
	photoField     = "photo"
	formMemory     = 1 << 20
	formFieldSlack = 64 << 10
)

// profileForm is a parsed profile submission. Close releases the uploaded file.
type profileForm struct {
	Request *request.CompleteProfileRequest
	Photo   *storage.Upload

	file multipart.File
	form *multipart.Form
}

func (f *profileForm) Close() {
	if f.file != nil {
		f.file.Close()
	}
	if f.form != nil {
		f.form.RemoveAll()
	}
}

// parseProfileForm accepts multipart/form-data with an optional photo, or a
// plain JSON body without one. It writes the error response itself.
func parseProfileForm(w http.ResponseWriter, r *http.Request, config utils.UploadConfig) (*profileForm, bool) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req := &request.CompleteProfileRequest{}
		if err := decodeJSON(r, req); err != nil {
			utils.ResponseBadRequest(w, "Invalid request body", nil)
			return nil, false
		}
		return &profileForm{Request: req}, true
	}

	if config.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, config.MaxBytes+formFieldSlack)
	}
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ResponseError(w, http.StatusBadRequest, "Validation failed", utils.ErrorBody{
				Code:   "validation_failed",
				Fields: map[string]string{photoField: "File is too large"},
			})
			return nil, false
		}
		utils.ResponseBadRequest(w, "Invalid multipart form", nil)
		return nil, false
	}

	form := &profileForm{
		Request: &request.CompleteProfileRequest{
			FullName:   r.FormValue("full_name"),
			Phone:      r.FormValue("phone"),
			Address:    r.FormValue("address"),
			BirthPlace: r.FormValue("birth_place"),
			BirthDate:  r.FormValue("birth_date"),
		},
		form: r.MultipartForm,
	}
	if wa := r.FormValue("whatsapp"); wa != "" {
		form.Request.WhatsApp = &wa
	}
	// Unparseable ids stay zero and fail validation
	if id, err := strconv.ParseInt(r.FormValue("region_id"), 10, 64); err == nil {
		form.Request.RegionID = id
	}

	file, header, err := r.FormFile(photoField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		form.Close()
		utils.ResponseBadRequest(w, "Invalid photo upload", nil)
		return nil, false
	default:
		form.file = file
		form.Photo = &storage.Upload{
			Filename: header.Filename,
			Size:     header.Size,
			Content:  file,
		}
	}

	return form, true
}
