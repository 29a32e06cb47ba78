// Package server exposes the fixed-parameter embed and extract pipelines
// over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	watermark "github.com/yyyoichi/watermark_svd"
	"github.com/yyyoichi/watermark_svd/internal/cache"
	"github.com/yyyoichi/watermark_svd/internal/config"
	"github.com/yyyoichi/watermark_svd/internal/store"
)

// Metadata keys the service adds to the embed metadata.
const (
	MetaPSNR        = "psnr_db"
	MetaFixedParams = "fixed_params"
	MetaSource      = "wm_src"
)

const (
	defaultRecent = 20
	maxRecent     = 100
)

// Ledger records completed embeds.
type Ledger interface {
	Insert(ctx context.Context, r store.Record) (store.Record, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

// ResultCache keeps encoded embed responses. Get returns nil on a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) (*cache.Entry, error)
	Set(ctx context.Context, key string, e *cache.Entry) error
}

type Server struct {
	cfg     *config.Config
	log     *zap.Logger
	wm      *watermark.Watermark
	ledger  Ledger
	cache   ResultCache
	limiter *RateLimiter
	// params identifies the fixed embedding parameters in cache keys.
	params string
}

// New builds a server embedding with cfg.Embed. c may be nil to disable
// caching.
func New(cfg *config.Config, log *zap.Logger, ledger Ledger, c ResultCache) (*Server, error) {
	band, err := watermark.ParseBand(cfg.Embed.Band)
	if err != nil {
		return nil, err
	}
	wm, err := watermark.New(
		watermark.WithWavelet(cfg.Embed.Wavelet),
		watermark.WithLevel(cfg.Embed.Level),
		watermark.WithBand(band),
		watermark.WithAlpha(cfg.Embed.Alpha),
	)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		log:     log,
		wm:      wm,
		ledger:  ledger,
		cache:   c,
		limiter: NewRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst),
		params: fmt.Sprintf("%s/%d/%s/%g/%s/%d",
			cfg.Embed.Wavelet, cfg.Embed.Level, band, cfg.Embed.Alpha, cfg.Embed.WatermarkPath, cfg.Metadata.MaxSize),
	}, nil
}

// Routes returns the HTTP handler of the service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.Health)
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Post("/embed_fixed_single", s.EmbedFixed)
		r.Post("/extract_fixed", s.ExtractFixed)
		r.Get("/embeds", s.RecentEmbeds)
	})
	return r
}

// Close stops background work.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{"status": "ok"})
}

// EmbedFixed handles POST /embed_fixed_single
func (s *Server) EmbedFixed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hostData, ok := s.readUpload(w, r, "host")
	if !ok {
		return
	}

	src := s.cfg.Embed.WatermarkPath
	if _, err := os.Stat(src); err != nil {
		abs, _ := filepath.Abs(src)
		s.log.Error("default watermark missing", zap.String("path", abs), zap.Error(err))
		jsonError(w, "default watermark file not found: "+abs, http.StatusInternalServerError)
		return
	}

	key := cache.Key(s.params, hostData)
	if s.cache != nil {
		entry, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		} else if entry != nil {
			writeEmbed(w, entry)
			return
		}
	}

	host, err := watermark.ReadImage(bytes.NewReader(hostData))
	if err != nil {
		s.fail(w, err)
		return
	}
	mark, err := loadImage(src)
	if err != nil {
		s.log.Error("failed to read default watermark", zap.String("path", src), zap.Error(err))
		jsonError(w, "failed to read default watermark: "+err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := s.wm.Embed(host, mark)
	if err != nil {
		s.fail(w, err)
		return
	}
	res.Meta[MetaPSNR] = res.PSNR
	res.Meta[MetaFixedParams] = watermark.Bag{
		watermark.MetaWavelet: res.Meta[watermark.MetaWavelet],
		watermark.MetaLevel:   res.Meta[watermark.MetaLevel],
		watermark.MetaBand:    res.Meta[watermark.MetaBand],
		watermark.MetaAlpha:   res.Meta[watermark.MetaAlpha],
	}
	res.Meta[MetaSource] = src

	var buf bytes.Buffer
	if err := watermark.WritePNG(&buf, res.Marked, res.Meta, watermark.WithMetaMaxSize(s.cfg.Metadata.MaxSize)); err != nil {
		s.fail(w, err)
		return
	}

	entry := &cache.Entry{
		PSNR: strconv.FormatFloat(res.PSNR, 'f', 4, 64),
		PNG:  buf.Bytes(),
	}
	rec := store.Record{
		Wavelet: res.Meta[watermark.MetaWavelet].(string),
		Level:   s.cfg.Embed.Level,
		Band:    res.Meta[watermark.MetaBand].(string),
		Alpha:   s.cfg.Embed.Alpha,
		Width:   host.Cols,
		Height:  host.Rows,
		Source:  src,
	}
	if !math.IsInf(res.PSNR, 1) {
		psnr := res.PSNR
		rec.PSNR = &psnr
	}
	if s.ledger != nil {
		if rec, err = s.ledger.Insert(ctx, rec); err != nil {
			s.log.Error("failed to record embed", zap.Error(err))
		} else {
			entry.EmbedID = rec.ID
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entry); err != nil {
			s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
	}

	s.log.Info("embedded",
		zap.String("embed_id", entry.EmbedID),
		zap.Int("width", host.Cols),
		zap.Int("height", host.Rows),
		zap.Float64("psnr_db", res.PSNR),
	)
	writeEmbed(w, entry)
}

// ExtractFixed handles POST /extract_fixed
func (s *Server) ExtractFixed(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readUpload(w, r, "watermarked_png")
	if !ok {
		return
	}
	marked, meta, err := watermark.ReadPNG(bytes.NewReader(data), watermark.WithMetaMaxSize(s.cfg.Metadata.MaxSize))
	if err != nil {
		s.fail(w, err)
		return
	}
	est, err := watermark.Extract(marked, meta)
	if err != nil {
		s.fail(w, err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, est.Image()); err != nil {
		s.fail(w, err)
		return
	}
	writePNG(w, "wm_extracted.png", buf.Bytes())
}

// RecentEmbeds handles GET /embeds
func (s *Server) RecentEmbeds(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		jsonOK(w, []store.Record{})
		return
	}
	limit := defaultRecent
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecent)
	}
	records, err := s.ledger.Recent(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	jsonOK(w, records)
}

// readUpload returns the bytes of the multipart file field. On failure the
// response has been written.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUpload)
	f, _, err := r.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "upload too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, fmt.Sprintf("missing file field %q", field), http.StatusBadRequest)
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		jsonError(w, "failed to read upload", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// fail writes err with the status it maps to.
func (s *Server) fail(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	jsonError(w, err.Error(), code)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, watermark.ErrMetadataTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, watermark.ErrMetadataNotFound),
		errors.Is(err, watermark.ErrMetadataCorrupt),
		errors.Is(err, watermark.ErrInvalidParameter),
		errors.Is(err, watermark.ErrNotPNG),
		errors.Is(err, watermark.ErrShapeMismatch),
		errors.Is(err, watermark.ErrInvalidLevel),
		errors.Is(err, watermark.ErrInvalidBand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func loadImage(path string) (*watermark.Pixels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return watermark.ReadImage(f)
}

func writeEmbed(w http.ResponseWriter, e *cache.Entry) {
	if e.EmbedID != "" {
		w.Header().Set("X-Embed-ID", e.EmbedID)
	}
	w.Header().Set("X-PSNR-DB", e.PSNR)
	writePNG(w, "face_marked.png", e.PNG)
}

func writePNG(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.Int("status", ww.Status()),
				zap.String("ip", clientIP(r)),
				zap.Duration("cost", time.Since(start)),
				zap.String("user_agent", r.UserAgent()),
			)
		})
	}
}
