package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/aiwallpaper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

func (h *handler) submitWallpaper(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req wallpaperRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	wp, err := h.wallpapers.Submit(r.Context(), user.ID, services.JobRequest{
		Prompt: req.Prompt,
		Size:   req.Size,
		Style:  req.Style,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newWallpaperResponse(wp))
}

func (h *handler) listWallpapers(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	list, err := h.wallpapers.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	resp := wallpaperListResponse{Wallpapers: make([]wallpaperResponse, 0, len(list))}
	for _, wp := range list {
		resp.Wallpapers = append(resp.Wallpapers, newWallpaperResponse(wp))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) suggestPrompt(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	prompt, err := h.wallpapers.Suggest(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{Prompt: prompt})
}

func (h *handler) getWallpaper(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	wp, err := h.wallpapers.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newWallpaperResponse(wp))
}

func (h *handler) deleteWallpaper(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wp, err := h.wallpapers.Get(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.wallpapers.Delete(r.Context(), user.ID, id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteWallpaperResponse{
		Message:          "Wallpaper deleted successfully",
		DeletedWallpaper: newWallpaperResponse(wp),
	})
}

func (h *handler) recreateWallpaper(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	wp, err := h.wallpapers.Recreate(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newWallpaperResponse(wp))
}

func (h *handler) downloadWallpaper(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	data, contentType, err := h.wallpapers.Download(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeBlob(w, contentType, data, id+".webp")
}
