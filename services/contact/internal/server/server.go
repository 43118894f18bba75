package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"contactapi/internal/util"
	"contactapi/services/contact/internal/app"
)

const (
	maxBodyBytes      = 1 << 20
	maxMultipartBytes = 1 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	AllowedOrigins []string
	TrustedProxies *util.TrustedProxies
}

// Server exposes the contact form endpoints.
type Server struct {
	app     *app.App
	origins []string
	trusted *util.TrustedProxies
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	s := &Server{
		app:     cfg.App,
		origins: cfg.AllowedOrigins,
		trusted: cfg.TrustedProxies,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("contact", s.trusted, util.WithSecurityHeaders(util.WithCORS(s.origins)(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/api", s.handleAPI)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/submit_contact_form", s.handleSubmit)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		notFound(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hello World"})
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Hello API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := parseForm(r); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	form := app.ContactForm{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Phone:   r.PostForm.Get("phone"),
		Title:   r.PostForm.Get("title"),
		Message: r.PostForm.Get("message"),
	}

	// Sink failures live in the report and the logs; the caller always
	// gets the same acknowledgment once the form is valid.
	if _, err := s.app.Submit(r.Context(), form); err != nil {
		var verr *app.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
				Error:     "missing required fields",
				Fields:    verr.Fields,
				RequestID: requestID(w),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Contact form submitted successfully"})
}

// parseForm reads an urlencoded or multipart body into r.PostForm.
// Other content types leave PostForm empty so validation reports every field.
func parseForm(r *http.Request) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartBytes); err != nil {
			return err
		}
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
		return nil
	}
	return r.ParseForm()
}

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Error     string   `json:"error"`
	Fields    []string `json:"fields"`
	RequestID string   `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: requestID(w)})
}

func requestID(w http.ResponseWriter) string {
	return strings.TrimSpace(w.Header().Get("X-Request-Id"))
}
