package commands

import (
	"database/sql"
	"time"

	"github.com/riftwatch/smurfwatch/config"
	"github.com/riftwatch/smurfwatch/db"
	"github.com/riftwatch/smurfwatch/detect"
	"github.com/riftwatch/smurfwatch/errors"
	"github.com/riftwatch/smurfwatch/logger"
	"github.com/riftwatch/smurfwatch/riot"
	"github.com/riftwatch/smurfwatch/store"
)

// app bundles the collaborators every command works against.
type app struct {
	cfg      *config.Config
	database *sql.DB

	players  *store.PlayerStore
	matches  *store.MatchStore
	ranks    *store.RankStore
	analyses *store.AnalysisStore

	client *riot.Client
	engine *detect.Engine
}

// openApp loads configuration, opens and migrates the database, and
// wires the stores, API client and detection engine. The caller owns
// the returned app and must Close it.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, err
	}

	players := store.NewPlayerStore(database)
	matches := store.NewMatchStore(database)
	ranks := store.NewRankStore(database)
	analyses := store.NewAnalysisStore(database)

	client := riot.NewClient(riot.Options{
		APIKey:     cfg.Riot.APIKey,
		Region:     cfg.Riot.Region,
		Platform:   cfg.Riot.Platform,
		Timeout:    time.Duration(cfg.Riot.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Riot.MaxRetries,
		SteadyRPS:  cfg.Riot.FloorRPS,
	}, logger.Named("riot"))

	engine := detect.NewEngine(players, matches, ranks, analyses,
		detectionSettings(cfg), logger.Named("detect"))

	return &app{
		cfg:      cfg,
		database: database,
		players:  players,
		matches:  matches,
		ranks:    ranks,
		analyses: analyses,
		client:   client,
		engine:   engine,
	}, nil
}

func (a *app) Close() {
	a.database.Close()
}

// detectionSettings maps the configuration block to engine settings.
func detectionSettings(cfg *config.Config) detect.Settings {
	d := cfg.Detection
	return detect.Settings{
		Weights:         d.Weights,
		MinGames:        d.MinGames,
		Freshness:       time.Duration(d.FreshnessHours) * time.Hour,
		KDAThreshold:    d.KDAThreshold,
		HighThreshold:   d.HighThreshold,
		MediumThreshold: d.MediumThreshold,
		LowThreshold:    d.LowThreshold,
	}
}
