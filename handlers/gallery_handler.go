package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"stayHardAPI/middleware"
	"stayHardAPI/services"
)

// maxPhotoBytes caps uploads at 10MB.
const maxPhotoBytes = 10 << 20

type GalleryHandler struct {
	galleryService *services.GalleryService
}

func NewGalleryHandler(galleryService *services.GalleryService) *GalleryHandler {
	return &GalleryHandler{
		galleryService: galleryService,
	}
}

// UploadPhoto accepts a multipart form with a "photo" file plus challengeId,
// date, localTimestamp, timezone and timezoneOffset fields. The time fields
// are stored as opaque client labels; they never enter day arithmetic.
func (h *GalleryHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read photo")
		return
	}

	offset, _ := strconv.Atoi(r.FormValue("timezoneOffset"))

	params := &services.UploadPhotoParams{
		ChallengeID:    r.FormValue("challengeId"),
		Date:           r.FormValue("date"),
		LocalTimestamp: r.FormValue("localTimestamp"),
		Timezone:       r.FormValue("timezone"),
		TimezoneOffset: offset,
		Filename:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		Data:           data,
	}

	photo, err := h.galleryService.UploadPhoto(ctx, clerkID, params)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, photo)
}

// ListPhotos returns photo metadata, filterable by challengeId and an
// inclusive startDate/endDate label range.
func (h *GalleryHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	q := r.URL.Query()
	photos, err := h.galleryService.ListPhotos(ctx, clerkID,
		q.Get("challengeId"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, photos)
}

// StreamPhoto writes the raw image bytes with their stored content type.
func (h *GalleryHandler) StreamPhoto(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	contentType, data, err := h.galleryService.GetPhotoContent(ctx, clerkID, photoID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *GalleryHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	photoID := mux.Vars(r)["id"]

	if err := h.galleryService.DeletePhoto(ctx, clerkID, photoID); err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Photo deleted successfully"})
}
