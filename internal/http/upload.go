package http

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/analysis"
)

const (
	uploadField = "image"
	// multipart headers and boundaries on top of the file itself
	multipartOverhead = 1 << 20
)

var acceptedFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with an image field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
		return
	}

	// Sniff the real format; the client supplied content type is not trusted.
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || !acceptedFormats[format] {
		writeError(w, http.StatusBadRequest, "only png and jpeg images are accepted")
		return
	}

	s.logger.Infow("Received image", "name", header.Filename, "format", format, "bytes", len(data))

	result, err := s.service.AnalyzeImage(r.Context(), analysis.Upload{Name: header.Filename, Data: data})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
