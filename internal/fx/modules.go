package fx

import (
	"database/sql"
	"lp-tracker/internal/api"
	"lp-tracker/internal/config"
	"lp-tracker/internal/database"
	"lp-tracker/internal/db"
	"lp-tracker/internal/logger"
	"lp-tracker/internal/repository"
	"lp-tracker/internal/server"
	"lp-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

func ProvideTrackerServer(
	snapshots *service.SnapshotService,
	stats *service.StatsService,
	scheduler *service.Scheduler,
	accounts *repository.AccountRepository,
	jobs *repository.JobRepository,
	riot *api.RiotClient,
	sqlDB *sql.DB,
	cfg *config.Config,
	logger zerolog.Logger,
) *server.TrackerServer {
	return server.NewTrackerServer(snapshots, stats, scheduler, accounts, sqlDB, jobs, riot, cfg, logger)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(fx.Annotate(
		repository.NewAccountRepository,
		fx.As(fx.Self()),
		fx.As(new(service.AccountStore)),
	)),
	fx.Provide(fx.Annotate(
		repository.NewJobRepository,
		fx.As(fx.Self()),
		fx.As(new(service.JobQueue)),
		fx.As(new(service.WorkQueue)),
	)),
	fx.Provide(fx.Annotate(repository.NewSnapshotRepository, fx.As(new(service.SnapshotStore)))),
	fx.Provide(fx.Annotate(repository.NewMatchRepository, fx.As(new(service.MatchStore)))),
	// riot api
	fx.Provide(fx.Annotate(
		api.NewRiotClient,
		fx.As(fx.Self()),
		fx.As(new(service.RankedLookup)),
		fx.As(new(service.MatchHistory)),
	)),
	fx.Provide(fx.Annotate(api.NewLiveGameCacheFromConfig, fx.As(new(api.ActiveGameLookup)))),
	// svc
	fx.Provide(fx.Annotate(service.NewMatchSyncService, fx.As(new(service.MatchSyncer)))),
	fx.Provide(fx.Annotate(service.NewDetector, fx.As(new(service.DetectorRunner)))),
	fx.Provide(fx.Annotate(
		service.NewWorker,
		fx.As(new(service.WorkerRunner)),
		fx.As(new(service.JobRunner)),
	)),
	fx.Provide(service.NewScheduler),
	fx.Provide(service.NewSnapshotService),
	fx.Provide(service.NewStatsService),
	// server
	fx.Provide(ProvideTrackerServer),
)
