package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/diagnosis/reservou/internal/http/response"
	"github.com/diagnosis/reservou/internal/service"
	"github.com/diagnosis/reservou/pkg/auth"
)

// MaxMultipartBytes caps gallery and banner forms.
const MaxMultipartBytes = 25 << 20

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxMultipartBytes)
	if err := r.ParseMultipartForm(MaxMultipartBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.BadRequest("upload too large")
		}
		return apperror.BadRequestCause("invalid multipart form", err)
	}
	return nil
}

// contentType prefers the part header and falls back to sniffing.
func contentType(fh *multipart.FileHeader, f multipart.File) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	_, _ = f.Seek(0, io.SeekStart)
	return http.DetectContentType(buf[:n])
}

func openUpload(fh *multipart.FileHeader, alt string) (service.Upload, multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, nil, apperror.BadRequestCause("unreadable upload", err)
	}
	return service.Upload{
		Alt:         alt,
		ContentType: contentType(fh, f),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

func (h *Handlers) UpdateBanner(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		response.Error(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["banner"]
	if len(files) != 1 {
		response.Error(w, r, apperror.BadRequest("exactly one banner image is required"))
		return
	}
	upload, f, err := openUpload(files[0], "")
	if err != nil {
		response.Error(w, r, err)
		return
	}
	defer f.Close()

	url, err := h.galleryService.UpdateBanner(r.Context(), auth.FromContext(r.Context()), upload)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, map[string]string{"banner_url": url}, "banner updated")
}

func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.galleryService.ListPhotos(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, photos, "")
}

// UpdatePhotos reads "photos" files with their "alt" texts in the same
// order, and "deleted" photo ids, repeated or comma separated.
func (h *Handlers) UpdatePhotos(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		response.Error(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var deleted []string
	for _, v := range r.MultipartForm.Value["deleted"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				deleted = append(deleted, id)
			}
		}
	}

	alts := r.MultipartForm.Value["alt"]
	files := r.MultipartForm.File["photos"]
	uploads := make([]service.Upload, 0, len(files))
	for i, fh := range files {
		var alt string
		if i < len(alts) {
			alt = strings.TrimSpace(alts[i])
		}
		upload, f, err := openUpload(fh, alt)
		if err != nil {
			response.Error(w, r, err)
			return
		}
		defer f.Close()
		uploads = append(uploads, upload)
	}

	photos, err := h.galleryService.UpdateGallery(r.Context(), auth.FromContext(r.Context()), deleted, uploads)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, photos, "gallery updated")
}
