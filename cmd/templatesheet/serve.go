package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/nikitaxru/templatesheet"
)

// maxUploadMemory bounds the multipart form kept in memory; larger uploads spill to
// temporary files.
const maxUploadMemory = 32 << 20

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve exports over HTTP",
		Long: `Accept multipart uploads (field "files") and answer with the export.

Endpoints:
  POST /export/{kind}   Workbook or csv. Query: format, style, filter, excludeConditional.
  POST /tsv/{kind}      Tab-separated rows of the first readable file.
  GET  /healthz

Skipped files are listed in the X-Skipped-Files response header.

Example:
  curl -F files=@acme_Intake.json -o forms.xlsx localhost:8080/export/forms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := loadLayout(&cfg); err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           newServer(cfg).router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	return cmd
}

type server struct {
	router *chi.Mux
	base   templatesheet.ExportConfig
	logger *log.Logger
}

func newServer(base templatesheet.ExportConfig) *server {
	logger := base.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &server{router: chi.NewRouter(), base: base, logger: logger}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok\n")
	})
	s.router.Post("/export/{kind}", s.handleExport)
	s.router.Post("/tsv/{kind}", s.handleTSV)
	return s
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, results, ok := s.process(w, r)
	if !ok {
		return
	}
	cfg, err := s.requestConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	blob, err := templatesheet.Export(results, cfg)
	if err != nil {
		http.Error(w, err.Error(), exportStatus(err))
		return
	}

	setSkipped(w, results)
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.FileName(string(kind))))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	_, _ = w.Write(blob.Data)
}

func (s *server) handleTSV(w http.ResponseWriter, r *http.Request) {
	_, results, ok := s.process(w, r)
	if !ok {
		return
	}
	batches := templatesheet.Batches(results)
	if len(batches) == 0 {
		http.Error(w, templatesheet.ErrEmptyExport.Error(), http.StatusUnprocessableEntity)
		return
	}
	setSkipped(w, results)
	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	_, _ = io.WriteString(w, batches[0].TSV())
}

// process reads the uploaded files and flattens them. It writes the error response
// itself and reports false when the request cannot go on.
func (s *server) process(w http.ResponseWriter, r *http.Request) (templatesheet.Kind, []templatesheet.Result, bool) {
	kind, err := templatesheet.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return "", nil, false
	}
	files, err := uploadedFiles(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	results, err := templatesheet.Process(kind, files, s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return "", nil, false
	}
	return kind, results, true
}

// requestConfig applies the query parameters on top of the server's config.
func (s *server) requestConfig(r *http.Request) (templatesheet.ExportConfig, error) {
	cfg := s.base
	cfg.Logger = s.logger
	q := r.URL.Query()
	if v := q.Get("format"); v != "" {
		f, err := templatesheet.ParseFormat(strings.ToLower(v))
		if err != nil {
			return cfg, err
		}
		cfg.OutputFormat = f
	}
	if v := q.Get("style"); v != "" {
		cfg.TemplateStyle = templatesheet.TemplateStyle(v)
	}
	if q.Has("filter") {
		cfg.Filter = q.Get("filter")
	}
	if v := q.Get("excludeConditional"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("excludeConditional: %w", err)
		}
		cfg.ExcludeConditionalFields = b
	}
	return cfg, cfg.Validate()
}

func uploadedFiles(r *http.Request) ([]templatesheet.File, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, errors.New(`no files uploaded in field "files"`)
	}
	files := make([]templatesheet.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", h.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", h.Filename, err)
		}
		files = append(files, templatesheet.File{Name: h.Filename, Content: string(data)})
	}
	return files, nil
}

func setSkipped(w http.ResponseWriter, results []templatesheet.Result) {
	var names []string
	for _, f := range templatesheet.Failures(results) {
		names = append(names, f.File)
	}
	if len(names) > 0 {
		w.Header().Set("X-Skipped-Files", strings.Join(names, ", "))
	}
}

func exportStatus(err error) int {
	switch {
	case errors.Is(err, templatesheet.ErrEmptyExport):
		return http.StatusUnprocessableEntity
	case errors.Is(err, templatesheet.ErrInvalidFilter),
		errors.Is(err, templatesheet.ErrUnsupportedFormat),
		errors.Is(err, templatesheet.ErrInvalidLayout):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
