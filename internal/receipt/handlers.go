package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadSize bounds uploads; phone photos can be large
const maxUploadSize = int64(50 << 20)

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// scanResponse is a Result with the ID of the scan that produced it
type scanResponse struct {
	ID string `json:"id"`
	*Result
}

// handleScanImage scans a base64 image sent as JSON
func (s *Server) handleScanImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageBase64 string `json:"imageBase64"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		writeError(w, "Image data is required", http.StatusBadRequest)
		return
	}

	scan, err := s.service.ScanBase64(r.Context(), req.ImageBase64)
	if err != nil {
		if errors.Is(err, ErrInvalidImage) {
			writeError(w, "Invalid image data", http.StatusBadRequest)
			return
		}
		slog.Error("Error processing receipt", "error", err)
		writeError(w, "Failed to process receipt", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{ID: scan.ID, Result: scan.Result})
}

// handleUploadScan scans an uploaded receipt file
func (s *Server) handleUploadScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename, data)
	}

	scan, err := s.service.ProcessUpload(r.Context(), header.Filename, data, contentType)
	if err != nil {
		if errors.Is(err, ErrInvalidImage) {
			writeError(w, "Image data is required", http.StatusBadRequest)
			return
		}
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeError(w, "Failed to process receipt", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, scan)
}

// contentTypeFor guesses a content type from the file extension, then from the bytes
func contentTypeFor(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return http.DetectContentType(data)
}

// handleInterpretText interprets OCR text without calling the scanner
func (s *Server) handleInterpretText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == nil {
		writeError(w, "Text is required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.service.Interpret(r.Context(), *req.Text))
}

// handleScanStatus reports the status of a scan job
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		writeError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	status, err := s.service.ScanStatus(jobID)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleListScans returns all scans, newest first
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.service.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []*Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleGetScan returns a single scan
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.service.GetScan(r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleGetScanFile returns the stored image for a scan
func (s *Server) handleGetScanFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetScanFile(r.PathValue("id"))
	if err != nil {
		slog.Warn("Error getting scan file", "id", r.PathValue("id"), "error", err)
		writeError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteScan deletes a scan and its image
func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteScan(r.PathValue("id")); err != nil {
		s.writeLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeLookupError maps ErrNotFound to 404 and anything else to 500
func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, "Scan not found", http.StatusNotFound)
		return
	}
	slog.Error("Error reading scan", "error", err)
	writeError(w, "Internal server error", http.StatusInternalServerError)
}
