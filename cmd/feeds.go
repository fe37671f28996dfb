package cmd

import (
	"fmt"
	"time"

	"feedreader/config"
	"feedreader/fetch"

	"github.com/urfave/cli/v2"
)

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:        "feeds",
		Usage:       "List the configured feeds",
		Description: `Validates the configuration file and prints its feeds in navigation order.

		With --check every feed is fetched once and its entry count or error is shown.`,
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Fetch every feed and report whether it loads",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: 4,
				Usage: "Feeds fetched at the same time by --check",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if !ctx.Bool("check") {
				for i, src := range cfg.Sources() {
					fmt.Printf("%2d. %s\n    %s\n", i, src.Name, src.URL)
				}
				fmt.Printf("\nReturns to feed 0 after %s without navigation\n", cfg.IdlePeriod())
				return nil
			}

			fetcher := fetch.New(fetch.Config{MaxRetries: cfg.FetchRetries})
			failed := 0
			for _, res := range fetch.CheckAll(ctx.Context, fetcher, cfg.Sources(), ctx.Int("workers")) {
				if res.Err != nil {
					failed++
					fmt.Printf("%2d. %s\n    FAILED %v\n", res.Index, res.Source.Name, res.Err)
					continue
				}
				fmt.Printf("%2d. %s\n    %d entries in %s\n", res.Index, res.Source.Name, res.Entries, res.Latency.Round(time.Millisecond))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d feeds failed to load", failed, len(cfg.Feeds))
			}
			return nil
		},
	}
}

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:        "history",
		Usage:       "Show saved favorites and recently read entries",
		Description: `Prints the favorites stored in the database followed by the most recent reads.`,
		Flags: []cli.Flag{
			databaseFlag("SQLite database file location"),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
				Usage:   "Number of reads to show",
			},
		},
		Action: func(ctx *cli.Context) error {
			database, favorites, err := openState(ctx.Context, ctx.String("database"))
			if err != nil {
				return err
			}
			if database == nil {
				return fmt.Errorf("no database configured")
			}
			defer database.Close()

			fmt.Println("Favorites:")
			if len(favorites) == 0 {
				fmt.Println("  (none)")
			}
			for _, url := range favorites {
				fmt.Println("  " + url)
			}

			reads, err := database.RecentReads(ctx.Context, ctx.Int("limit"))
			if err != nil {
				return err
			}
			fmt.Println("\nRecently read:")
			if len(reads) == 0 {
				fmt.Println("  (none)")
			}
			for _, r := range reads {
				fmt.Printf("  %s  %s\n    %s\n", r.ReadAt.Format(time.DateTime), r.Title, r.Link)
			}
			return nil
		},
	}
}
