/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"feedreader/db"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing old entries from the read log.

		Removes reads older than the retention period, 90 days by default.
		Favorites are never removed.`,
		Flags: []cli.Flag{
			databaseFlag("SQLite database file location"),
			&cli.DurationFlag{
				Name:    "retention",
				Value:   db.DefaultRetention,
				Usage:   "How long reads are kept",
				EnvVars: []string{"FEEDREADER_RETENTION"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database, _, err := openState(ctx.Context, ctx.String("database"))
			if err != nil {
				return err
			}
			if database == nil {
				return fmt.Errorf("no database configured")
			}
			defer database.Close()

			removed, err := database.Tidy(ctx.Context, time.Now().Add(-ctx.Duration("retention")))
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d reads\n", removed)
			return nil
		},
	}
}
