package fx

import (
	"mania-tracker/internal/announce"
	"mania-tracker/internal/config"
	"mania-tracker/internal/constants"
	"mania-tracker/internal/database"
	"mania-tracker/internal/logger"
	"mania-tracker/internal/osuapi"
	"mania-tracker/internal/repository"
	"mania-tracker/internal/seen"
	"mania-tracker/internal/server"
	"mania-tracker/internal/service"
	"mania-tracker/internal/tracker"

	"go.uber.org/fx"
)

func ProvideSeenRing() *seen.Ring {
	return seen.NewRing(constants.SeenRingSize)
}

func ProvideActivitySource(c *osuapi.Client) service.ActivitySource {
	return c
}

func ProvideStatsSource(c *osuapi.Client) tracker.StatsSource {
	return c
}

func ProvideNotifier(n *announce.LogNotifier) announce.Notifier {
	return n
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayRepository),
	fx.Provide(repository.NewTrackedPlayerRepository),
	fx.Provide(repository.NewDanRepository),
	// api client
	fx.Provide(osuapi.NewClient),
	fx.Provide(ProvideActivitySource),
	fx.Provide(ProvideStatsSource),
	// core
	fx.Provide(ProvideSeenRing),
	fx.Provide(announce.NewLogNotifier),
	fx.Provide(ProvideNotifier),
	fx.Provide(service.NewPipeline),
	fx.Provide(tracker.New),
	// server
	fx.Provide(server.NewAdminServer),
)
