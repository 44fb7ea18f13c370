package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
)

const (
	maxPictureBytes  = 5 << 20
	pictureFormField = "profile_image"
)

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req updateProfileRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	updated, err := h.profile.Update(r.Context(), user.ID, models.ProfileUpdate{
		UserName:    req.UserName,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(updated))
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req changePasswordRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.profile.ChangePassword(r.Context(), user.ID, req.OldPassword, req.Password); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

func (h *handler) uploadPicture(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxPictureBytes+1<<10)
	file, header, err := r.FormFile(pictureFormField)
	if err != nil {
		writeError(w, r, h.log, fmt.Errorf("%w: %s file is required", common.ErrorValidation, pictureFormField))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPictureBytes+1))
	if err != nil {
		writeError(w, r, h.log, fmt.Errorf("%w: unreadable upload", common.ErrorValidation))
		return
	}
	if len(data) > maxPictureBytes {
		writeError(w, r, h.log, fmt.Errorf("%w: image is larger than %d bytes", common.ErrorValidation, maxPictureBytes))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	updated, err := h.profile.UpdatePicture(r.Context(), user.ID, data, contentType)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(updated))
}

// picture streams a stored picture or redirects to an external one.
func (h *handler) picture(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	pic, err := h.profile.Picture(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if pic.URL != "" {
		http.Redirect(w, r, pic.URL, http.StatusFound)
		return
	}
	writeBlob(w, pic.ContentType, pic.Data, "")
}

func writeBlob(w http.ResponseWriter, contentType string, data []byte, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
