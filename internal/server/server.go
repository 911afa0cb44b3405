package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"intelliquery/internal/config"
	"intelliquery/internal/db"
	"intelliquery/internal/helper"
	"intelliquery/internal/ingest"
	"intelliquery/internal/llmservice"
	"intelliquery/internal/models"
	"intelliquery/internal/report"
)

// Ingestor is the slice of the ingestion pipeline the server needs.
type Ingestor interface {
	Ingest(ctx context.Context, path string) (*ingest.Result, error)
	CurrentImage() *ingest.Image
}

// Answerer answers a question from the indexed documents.
type Answerer interface {
	Query(ctx context.Context, question string) (*models.PromptResponse, error)
}

// Server exposes the document Q&A pipeline over HTTP.
type Server struct {
	cfg      *config.Config
	ingestor Ingestor
	answerer Answerer
	history  *historyStore

	// askImage is swappable for tests.
	askImage func(ctx context.Context, llmConfig *config.LLMConfig, question string, imageData []byte, mimeType string) (string, error)
}

func NewServer(cfg *config.Config, ingestor Ingestor, answerer Answerer, registry *bun.DB) *Server {
	return &Server{
		cfg:      cfg,
		ingestor: ingestor,
		answerer: answerer,
		history:  &historyStore{db: registry},
		askImage: llmservice.AskWithImage,
	}
}

// Router wires the API routes with request logging.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/documents", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	return r
}

// ListenAndServe runs the HTTP server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Server.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	path, err := s.saveUpload(file, header.Filename)
	if err != nil {
		log.Error().Err(err).Msg("Saving upload")
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	result, err := s.ingestor.Ingest(r.Context(), path)
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("Ingesting upload")
		if errors.Is(err, ingest.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process document")
		return
	}

	s.history.addFile(result.Filename)
	writeJSON(w, http.StatusOK, result)
}

// saveUpload writes the file under a unique subdirectory so simultaneous
// uploads with the same name never clobber each other.
func (s *Server) saveUpload(file io.Reader, filename string) (string, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(s.cfg.Server.UploadDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	log.Info().Str("path", path).Msg("File saved")
	return path, nil
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	var resp askResponse
	// An uploaded image takes over the conversation: questions go straight
	// to the multimodal model.
	if img := s.ingestor.CurrentImage(); img != nil {
		answer, err := s.askImage(r.Context(), &s.cfg.AnswerLLM, question, img.Data, img.MimeType)
		if err != nil {
			log.Error().Err(err).Msg("Image question failed")
			writeError(w, http.StatusBadGateway, "failed to answer image question")
			return
		}
		resp = askResponse{Question: question, Answer: answer, Source: img.Filename}
	} else {
		result, err := s.answerer.Query(r.Context(), question)
		if err != nil {
			log.Error().Err(err).Msg("Question failed")
			writeError(w, http.StatusBadGateway, "failed to answer question")
			return
		}
		resp = askResponse{Question: question, Answer: result.Content, Source: result.Source}
	}

	s.history.add(r.Context(), models.Exchange{
		Question:  resp.Question,
		Answer:    resp.Answer,
		Source:    resp.Source,
		CreatedAt: time.Now(),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	exchanges, err := s.history.list(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Loading history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, exchanges)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	exchanges, err := s.history.list(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Loading history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	fileNames, err := s.history.files(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Loading uploads")
		writeError(w, http.StatusInternalServerError, "failed to load uploads")
		return
	}

	builder := report.NewBuilder(&s.cfg.Report, fileNames)
	data, err := builder.Build(exchanges)
	if err != nil {
		log.Error().Err(err).Msg("Generating report")
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}

	filename := fmt.Sprintf("%s %s.pdf", s.cfg.Report.Title, time.Now().Format("2006-01-02 15:04:05"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// historyStore keeps the conversation in Postgres when available, in
// memory otherwise.
type historyStore struct {
	db *bun.DB

	mu        sync.Mutex
	mem       []models.Exchange
	fileNames []string
}

func (h *historyStore) add(ctx context.Context, ex models.Exchange) {
	if h.db != nil {
		if err := db.StoreExchange(ctx, h.db, ex.Question, ex.Answer, ex.Source); err != nil {
			log.Warn().Err(err).Msg("Could not persist exchange")
		}
		return
	}
	h.mu.Lock()
	h.mem = append(h.mem, ex)
	h.mu.Unlock()
}

func (h *historyStore) list(ctx context.Context) ([]models.Exchange, error) {
	if h.db != nil {
		rows, err := db.ListExchanges(ctx, h.db, 0)
		if err != nil {
			return nil, err
		}
		exchanges := make([]models.Exchange, len(rows))
		for i, row := range rows {
			exchanges[i] = models.Exchange{
				Question:  row.Question,
				Answer:    row.Answer,
				Source:    row.Source,
				CreatedAt: row.CreatedAt,
			}
		}
		return exchanges, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Exchange, len(h.mem))
	copy(out, h.mem)
	return out, nil
}

func (h *historyStore) addFile(name string) {
	h.mu.Lock()
	h.fileNames = append(h.fileNames, name)
	h.mu.Unlock()
}

// files returns the names for the report's Files line: the uploads table
// when the registry is present, the in-memory list otherwise.
func (h *historyStore) files(ctx context.Context) ([]string, error) {
	if h.db != nil {
		uploads, err := db.ListUploads(ctx, h.db)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(uploads))
		for i, u := range uploads {
			names[i] = u.Filename
		}
		return names, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.fileNames))
	copy(out, h.fileNames)
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs method, path, status, and duration for every request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
