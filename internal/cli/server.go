package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"viralshorts/manager-go/internal/db"
	"viralshorts/manager-go/internal/jobs"
	"viralshorts/manager-go/internal/queue"
	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
)

// watchedQueues are reported by /api/queues.
var watchedQueues = []string{
	jobs.QueueShortCreated,
	jobs.FlagConceptGenerated,
	jobs.FlagScriptGenerated,
	jobs.FlagBrollGenerated,
	jobs.FlagVoiceoverGenerated,
	jobs.FlagMetadataGenerated,
	jobs.QueueUploadYouTube,
	jobs.QueueUploadDailymotion,
}

type statusServer struct {
	store    jobs.Store
	services *jobs.Services
	depth    func(queue string) (int, error)
}

type shortView struct {
	ID        int64           `json:"id"`
	BatchID   string          `json:"batch_id"`
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	Score     *float64        `json:"score"`
	Status    string          `json:"status"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func viewOf(sh db.Short, withMeta bool) shortView {
	v := shortView{
		ID:        sh.ID,
		BatchID:   sh.BatchID,
		Title:     sh.Title,
		Category:  sh.Category,
		Score:     sh.Score,
		Status:    sh.Status,
		CreatedAt: sh.CreatedAt,
		UpdatedAt: sh.UpdatedAt,
	}
	if withMeta && len(sh.Meta) > 0 {
		v.Meta = json.RawMessage(sh.Meta)
	}
	return v
}

func (s *statusServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/budget", s.handleBudget).Methods(http.MethodGet)
	api.HandleFunc("/quota", s.handleQuota).Methods(http.MethodGet)
	api.HandleFunc("/uploads", s.handleUploads).Methods(http.MethodGet)
	api.HandleFunc("/queues", s.handleQueues).Methods(http.MethodGet)
	api.HandleFunc("/shorts", s.handleShorts).Methods(http.MethodGet)
	api.HandleFunc("/shorts/{id:[0-9]+}", s.handleShort).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Warn("status response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *statusServer) handleBudget(w http.ResponseWriter, r *http.Request) {
	if s.services == nil || s.services.Budget == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("budget not configured"))
		return
	}
	statuses, err := s.services.Budget.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	remaining, err := s.services.Budget.EstimateVideosRemaining(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": statuses, "videos_remaining": remaining})
}

func (s *statusServer) handleQuota(w http.ResponseWriter, r *http.Request) {
	if s.services == nil || s.services.Pools == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("quota pools not configured"))
		return
	}
	st, err := s.services.Pools.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *statusServer) handleUploads(w http.ResponseWriter, r *http.Request) {
	if s.services == nil || s.services.Uploads == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("upload state not configured"))
		return
	}
	out := map[string]any{}
	for _, platform := range []string{state.PlatformYouTube, state.PlatformDailymotion} {
		slots, err := s.services.Uploads.SlotsAvailable(r.Context(), platform)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		wait, err := s.services.Uploads.WaitTime(r.Context(), platform)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out[platform] = map[string]any{"slots": slots, "wait_seconds": int(wait.Seconds())}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *statusServer) handleQueues(w http.ResponseWriter, r *http.Request) {
	if s.depth == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("queue not connected"))
		return
	}
	out := make(map[string]int, len(watchedQueues))
	for _, name := range watchedQueues {
		n, err := s.depth(name)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		out[name] = n
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *statusServer) handleShorts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	shorts, err := s.store.ListShorts(r.Context(), "", limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]shortView, 0, len(shorts))
	for _, sh := range shorts {
		views = append(views, viewOf(sh, false))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *statusServer) handleShort(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sh, err := s.store.GetShortByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sh, true))
}

func runStatusServe(ctx context.Context, jctx jobs.JobContext, store jobs.Store, queueClient *queue.Client, args []string) error {
	fs := flag.NewFlagSet("Status:Serve", flag.ContinueOnError)
	listen := fs.String("listen", jctx.Config.StatusListen, "Listen address (host:port)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := &statusServer{store: store, services: jctx.Services}
	if queueClient != nil {
		srv.depth = queueClient.Depth
	}
	server := &http.Server{
		Addr:              *listen,
		Handler:           httpLoggingMiddleware(srv.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Info("status server listen", "listen", *listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *loggingResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *loggingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func httpLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.Verbose {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lrw, r)
		status := lrw.status
		if status == 0 {
			status = http.StatusOK
		}
		utils.Debug(
			"http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", lrw.bytes,
			"dur", time.Since(start).Truncate(time.Millisecond).String(),
			"remote", r.RemoteAddr,
		)
	})
}
