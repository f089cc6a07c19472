package api

import (
	"errors"
	"net/http"

	"github.com/msawatzky/christmas-list/internal/auth"
	"github.com/msawatzky/christmas-list/internal/scraper"
	"github.com/msawatzky/christmas-list/internal/upload"
)

// ---------------------------------------------------------------------------
// Prefill helpers
// ---------------------------------------------------------------------------

type fetchProductRequest struct {
	URL string `json:"url"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleFetchProduct(w http.ResponseWriter, r *http.Request) {
	if s.scraper == nil {
		s.respondError(w, http.StatusServiceUnavailable, "product lookup is not configured")
		return
	}

	var req fetchProductRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	product, err := s.scraper.Scrape(r.Context(), req.URL)
	switch {
	case errors.Is(err, scraper.ErrInvalidURL):
		s.respondError(w, http.StatusBadRequest, "please enter a valid product URL")
		return
	case err != nil:
		s.requestLogger(r).WithError(err).Warn("Product lookup failed")
		s.respondError(w, http.StatusBadGateway, "failed to fetch product information, please try again")
		return
	}

	s.respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploader == nil || !s.uploader.Enabled() {
		s.respondError(w, http.StatusServiceUnavailable, "image uploads are not configured")
		return
	}

	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.uploader.MaxBytes()+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusBadRequest, "image is too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "a multipart file field named \"file\" is required")
		return
	}
	defer file.Close()

	actor := auth.UserFromContext(r.Context())
	url, err := s.uploader.Upload(r.Context(), actor.ID, upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	switch {
	case errors.Is(err, upload.ErrNotImage), errors.Is(err, upload.ErrTooLarge):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.requestLogger(r).WithError(err).Warn("Image upload failed")
		s.respondError(w, http.StatusBadGateway, "failed to upload image, please try again")
		return
	}

	s.respondOK(w, http.StatusCreated, uploadResponse{URL: url})
}
