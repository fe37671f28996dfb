package cmd

import (
	"context"
	"fmt"

	"feedreader/config"
	"feedreader/db"
	"feedreader/feeds"
	"feedreader/fetch"
	"feedreader/widget"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config/feeds.toml",
		Usage:   "Path to feeds configuration file",
		EnvVars: []string{"FEEDREADER_CONFIG"},
	}
}

func databaseFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "feedreader.db",
		Usage:   usage,
		EnvVars: []string{"FEEDREADER_DATABASE"},
	}
}

// openState migrates and opens the state database and reads the saved favorites.
// An empty path runs without persistence.
func openState(ctx context.Context, path string) (*db.DB, []string, error) {
	if path == "" {
		log.Info("No database configured, favorites will not be saved")
		return nil, nil, nil
	}

	if err := db.Migrate(path); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, nil, err
	}
	favorites, err := database.FavoriteURLs(ctx)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, favorites, nil
}

// newEngine builds a widget engine from the configuration file
func newEngine(ctx context.Context, cfg *config.TomlConfig, database *db.DB, favorites []string, renderer feeds.Renderer, revealer feeds.Revealer) (*widget.Engine, error) {
	opts := widget.Options{
		Sources:      cfg.Sources(),
		Fetcher:      fetch.New(fetch.Config{MaxRetries: cfg.FetchRetries}),
		Renderer:     renderer,
		Revealer:     revealer,
		IdlePeriod:   cfg.IdlePeriod(),
		FetchTimeout: cfg.FetchTimeout(),
		Favorites:    favorites,
		Context:      ctx,
	}
	if database != nil {
		opts.Recorder = &db.Recorder{DB: database}
	}

	log.WithFields(log.Fields{
		"feeds":       len(opts.Sources),
		"idle_period": opts.IdlePeriod,
	}).Info("Creating widget")

	return widget.New(opts)
}
