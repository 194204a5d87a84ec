package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lp-tracker/internal/api"
	"lp-tracker/internal/config"
	"lp-tracker/internal/constants"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/middleware"
	"lp-tracker/internal/service"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 64 << 10

type Snapshots interface {
	Request(ctx context.Context, userID string, req service.SnapshotRequest) (*service.SnapshotEnqueueResult, error)
	GetGame(ctx context.Context, userID, gameID, queueType string) (*service.GameSnapshots, error)
}

type Stats interface {
	Session(ctx context.Context, userID string, tzOffset, gap time.Duration) (*service.SessionStats, error)
}

type Runs interface {
	RunDetector(ctx context.Context) (*service.DetectorSummary, error)
	RunWorker(ctx context.Context) (*service.WorkerSummary, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type JobCounter interface {
	Counts(ctx context.Context) (map[domain.JobStatus]int64, error)
}

type RateLimitReporter interface {
	GetRateLimitInfo() api.RateLimitInfo
}

// TrackerServer exposes the snapshot, stats and cron endpoints as JSON over
// HTTP.
type TrackerServer struct {
	snapshots Snapshots
	stats     Stats
	runs      Runs
	tokens    middleware.TokenResolver
	db        Pinger
	jobs      JobCounter
	riot      RateLimitReporter
	cfg       *config.Config
	logger    zerolog.Logger
}

func NewTrackerServer(
	snapshots Snapshots,
	stats Stats,
	runs Runs,
	tokens middleware.TokenResolver,
	db Pinger,
	jobs JobCounter,
	riot RateLimitReporter,
	cfg *config.Config,
	logger zerolog.Logger,
) *TrackerServer {
	return &TrackerServer{
		snapshots: snapshots,
		stats:     stats,
		runs:      runs,
		tokens:    tokens,
		db:        db,
		jobs:      jobs,
		riot:      riot,
		cfg:       cfg,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

func (s *TrackerServer) Handler() http.Handler {
	mux := http.NewServeMux()

	account := middleware.AccountAuth(s.tokens)
	cron := middleware.CronAuth(s.cfg.CronSecret, s.logger)

	mux.Handle("POST /api/v1/snapshots", account(http.HandlerFunc(s.createSnapshot)))
	mux.Handle("GET /api/v1/snapshots/{gameId}", account(http.HandlerFunc(s.getGameSnapshots)))
	mux.Handle("GET /api/v1/stats/session", account(http.HandlerFunc(s.getSessionStats)))

	// external schedulers differ in the method they call with
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		mux.Handle(method+" /internal/cron/detect", cron(http.HandlerFunc(s.runDetector)))
		mux.Handle(method+" /internal/cron/process-queue", cron(http.HandlerFunc(s.runWorker)))
	}

	mux.HandleFunc("GET /healthz", s.health)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type createSnapshotRequest struct {
	Type     string `json:"type"`
	GameID   string `json:"gameId"`
	Priority *int   `json:"priority"`
}

func (s *TrackerServer) createSnapshot(w http.ResponseWriter, r *http.Request) {
	var body createSnapshotRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON object")
		return
	}

	userID := middleware.UserID(r.Context())
	result, err := s.snapshots.Request(r.Context(), userID, service.SnapshotRequest{
		Type:     domain.SnapshotType(body.Type),
		GameID:   body.GameID,
		Priority: body.Priority,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if !result.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, toSnapshotResponse(result))
}

func (s *TrackerServer) getGameSnapshots(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	game, err := s.snapshots.GetGame(r.Context(), userID, r.PathValue("gameId"), r.URL.Query().Get("queue"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGameResponse(game))
}

func (s *TrackerServer) getSessionStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	tzOffset, err := minutesParam(query.Get("tzOffsetMinutes"), -14*60, 14*60)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "tzOffsetMinutes: "+err.Error())
		return
	}
	gap, err := minutesParam(query.Get("gapMinutes"), 1, 24*60)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "gapMinutes: "+err.Error())
		return
	}

	userID := middleware.UserID(r.Context())
	stats, err := s.stats.Session(r.Context(), userID, tzOffset, gap)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(stats))
}

// minutesParam parses an optional minute count within [lo, hi]; empty is zero.
func minutesParam(raw string, lo, hi int) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("must be between %d and %d", lo, hi)
	}
	return time.Duration(n) * time.Minute, nil
}

// Cron runs outlive a dropped client connection; the scheduler bounds them
// by the run budget.
func (s *TrackerServer) runDetector(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runs.RunDetector(context.WithoutCancel(r.Context()))
	s.writeRun(w, r, "detector", summary, err)
}

func (s *TrackerServer) runWorker(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runs.RunWorker(context.WithoutCancel(r.Context()))
	s.writeRun(w, r, "worker", summary, err)
}

func (s *TrackerServer) writeRun(w http.ResponseWriter, r *http.Request, component string, summary any, err error) {
	log := zerolog.Ctx(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
	case errors.Is(err, service.ErrRunInProgress):
		writeError(w, http.StatusConflict, "run_in_progress", err.Error())
	default:
		log.Error().Err(err).Str("run", component).Msg("scheduled run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   errorBody{Code: "run_failed", Message: err.Error()},
			"summary": summary,
		})
	}
}

func (s *TrackerServer) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	resp := map[string]any{"status": "ok", "rateLimit": s.riot.GetRateLimitInfo()}
	status := http.StatusOK

	if err := s.db.PingContext(ctx); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("database ping failed")
		resp["status"] = "degraded"
		resp["database"] = err.Error()
		status = http.StatusServiceUnavailable
	} else if counts, err := s.jobs.Counts(ctx); err == nil {
		resp["jobs"] = counts
	}

	writeJSON(w, status, resp)
}
