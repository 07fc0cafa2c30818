package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"resumeguard/internal/errors"
	"resumeguard/internal/types"
	"resumeguard/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// multipartOverhead is the allowance for boundaries, headers and the profile field
	multipartOverhead = 64 << 10

	// multipartMemory is how much of a form is held in memory before spilling to disk
	multipartMemory = 8 << 20
)

// scanRequest is the decoded multipart body of POST /scan
type scanRequest struct {
	Filename     string
	Data         []byte
	DocumentType types.DocumentType
	Profile      *types.Profile
}

// scanHandler runs a fraud scan over an uploaded document
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, "Method not allowed", "", "use POST", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.Observability.Tracer("resumeguard.api").Start(r.Context(), "api.scan")
	defer span.End()

	// Parse and validate the upload
	req, err := parseScanRequest(r)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		s.Logger.LogError(err, "Rejected scan request", "client_ip", getClientIP(r))
		writeAppError(w, "Invalid scan request", err)
		return
	}
	span.SetAttributes(
		attribute.String("document.name", req.Filename),
		attribute.String("document.type", string(req.DocumentType)),
	)

	report, err := s.Service.Scan(ctx, req.Data, req.DocumentType, req.Profile)
	// Scan only fails when the request context is done
	if err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Scan aborted", errors.ErrCodeNetworkTimeout, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// parseScanRequest reads the document, its type and the optional profile from a multipart form
func parseScanRequest(r *http.Request) (*scanRequest, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		// MaxBytesReader from the size limit middleware surfaces here
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"multipart/form-data body with a 'document' file is required", err)
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Printf("Failed to remove multipart temp files: %v", err)
		}
	}()

	file, header, err := r.FormFile("document")
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"'document' file field is required", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("Failed to close uploaded document: %v", err)
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read uploaded document", err)
	}

	req := &scanRequest{Filename: header.Filename, Data: data}

	// An explicit type wins over sniffing
	if name := strings.TrimSpace(r.FormValue("type")); name != "" {
		docType, err := utils.ParseDocumentType(name)
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeUnsupportedDocument, err.Error(), nil)
		}
		req.DocumentType = docType
	} else {
		req.DocumentType = utils.DetectDocumentType(header.Filename, data)
		if req.DocumentType == "" {
			return nil, errors.NewValidationError(errors.ErrCodeUnsupportedDocument,
				fmt.Sprintf("cannot determine the type of '%s'; set the 'type' field to one of %v",
					header.Filename, utils.SupportedDocumentTypes), nil)
		}
	}

	// Optional structured data for the authenticity check
	if raw := strings.TrimSpace(r.FormValue("profile")); raw != "" {
		var profile types.Profile
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			return nil, errors.NewValidationError("INVALID_PROFILE", "'profile' must be a JSON object", err)
		}
		req.Profile = &profile
	}

	return req, nil
}

// healthHandler reports whether documents are being accepted
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "healthy",
		"service": "resumeguard",
		"version": s.Version,
	}

	status := http.StatusOK
	if s.Service == nil || !s.Service.IsHealthy() {
		// Extraction breaker is open
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"service": "resumeguard",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           len(s.APIKeys) > 0,
		},
	}

	if s.Service != nil {
		response["scanning"] = s.Service.Stats()
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// writeAppError maps an AppError code onto an HTTP status
func writeAppError(w http.ResponseWriter, title string, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		writeErrorResponse(w, title, "", err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusBadRequest
	switch appErr.Code {
	case errors.ErrCodeFileTooLarge:
		status = http.StatusRequestEntityTooLarge
	case errors.ErrCodeUnsupportedDocument:
		status = http.StatusUnsupportedMediaType
	case errors.ErrCodeFileNotReadable:
		status = http.StatusInternalServerError
	}
	writeErrorResponse(w, title, appErr.Code, appErr.Message, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, code, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Code:    code,
		Message: message,
	})
}
