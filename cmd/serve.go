/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"feedreader/config"
	"feedreader/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// serveCmd represents the serve command
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feed widget over HTTP",
		Description: `Starts the feed widget HTTP server.

Serves the widget page, a JSON API to navigate feeds and manage favorites,
and a server-sent event stream of every render. Favorites are restored
from the database on start and saved on every change.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag("SQLite database file location, empty to disable persistence"),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"FEEDREADER_PORT"},
			},
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Value:   "",
				Usage:   "Interface to listen on, all interfaces when empty",
				EnvVars: []string{"FEEDREADER_HOSTNAME"},
			},
			&cli.StringFlag{
				Name:    "allow-origins",
				Value:   "http://localhost:3001",
				Usage:   "Comma separated origins allowed to call the API",
				EnvVars: []string{"FEEDREADER_ALLOW_ORIGINS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			database, favorites, err := openState(ctx.Context, ctx.String("database"))
			if err != nil {
				return err
			}
			if database != nil {
				defer database.Close()
			}

			bc := server.NewBroadcaster()
			engine, err := newEngine(ctx.Context, cfg, database, favorites, bc, bc)
			if err != nil {
				return err
			}

			app := server.Server(&server.ServerConfig{
				Engine:       engine,
				Broadcaster:  bc,
				AllowOrigins: ctx.String("allow-origins"),
				WaitTimeout:  cfg.FetchTimeout() + 5*time.Second,
			})

			if _, err := engine.Start(); err != nil {
				return err
			}

			// Graceful shutdown
			go func() {
				<-ctx.Context.Done()
				log.Info("Gracefully shutting down...")
				engine.Close()
				bc.Shutdown()
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.Errorf("Error shutting down server: %v", err)
				}
			}()

			addr := fmt.Sprintf("%s:%d", ctx.String("hostname"), ctx.Int("port"))
			log.WithFields(log.Fields{
				"address": addr,
			}).Info("Starting server")
			return app.Listen(addr)
		},
	}
}
