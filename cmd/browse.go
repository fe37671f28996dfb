package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"feedreader/config"
	"feedreader/feeds"
	"feedreader/models"
	"feedreader/render"
	"feedreader/widget"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	actionNext       = "Next feed"
	actionPrevious   = "Previous feed"
	actionRefresh    = "Refresh"
	actionOpen       = "Open feed..."
	actionRead       = "Mark entry read..."
	actionFavorite   = "Add current to favorites"
	actionUnfavorite = "Remove favorite..."
	actionFavorites  = "Show favorites"
	actionQuit       = "Quit"
)

// browseCmd runs the widget in the terminal
func browseCmd() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse the feeds in the terminal",
		Description: `Shows the widget in the terminal. Pick actions from the menu to move
between feeds, mark entries read and manage favorites.

The idle timer runs here too: when nothing is chosen for the idle period the
first feed is loaded and printed again.`,
		Flags: []cli.Flag{
			configFlag(),
			databaseFlag("SQLite database file location, empty to disable persistence"),
		},
		Action: func(ctx *cli.Context) error {
			if !ctx.IsSet("log-level") {
				log.SetLevel(log.WarnLevel)
			}
			log.SetOutput(os.Stderr)

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

			view := render.NewTextView(os.Stdout)
			engine, err := newEngine(ctx.Context, cfg, database, favorites, view, view)
			if err != nil {
				return err
			}
			defer engine.Close()

			load, err := engine.Start()
			if err := report(ctx.Context, load, err); err != nil {
				return err
			}

			return browse(ctx.Context, engine, view)
		},
	}
}

func browse(ctx context.Context, engine *widget.Engine, view *render.TextView) error {
	actions := []string{
		actionNext, actionPrevious, actionRefresh, actionOpen, actionRead,
		actionFavorite, actionUnfavorite, actionFavorites, actionQuit,
	}

	for {
		action, err := prompt.New().Ask("What next?").Choose(actions)
		if errors.Is(err, prompt.ErrUserQuit) {
			return nil
		}
		if err != nil {
			return err
		}

		switch action {
		case actionNext:
			load, err := engine.LoadNextFeed(nil)
			if err := report(ctx, load, err); err != nil {
				return err
			}
		case actionPrevious:
			load, err := engine.LoadPreviousFeed(nil)
			if err := report(ctx, load, err); err != nil {
				return err
			}
		case actionRefresh:
			load, err := engine.Reload(nil)
			if err := report(ctx, load, err); err != nil {
				return err
			}
		case actionOpen:
			index, ok, err := chooseFeed(engine.Feeds())
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			load, err := engine.LoadFeed(index, nil)
			if err := report(ctx, load, err); err != nil {
				return err
			}
		case actionRead:
			if err := markRead(engine); err != nil {
				return err
			}
		case actionFavorite:
			if err := engine.AddCurrentAsFavorite(); err != nil {
				return err
			}
			fmt.Print(view.Favorites())
		case actionUnfavorite:
			if err := removeFavorite(engine); err != nil {
				return err
			}
			fmt.Print(view.Favorites())
		case actionFavorites:
			fmt.Print(view.Favorites())
		case actionQuit:
			return nil
		}
	}
}

// report waits for a load so its feed is printed before the next prompt.
// Failed fetches are printed and leave the previous feed on screen.
func report(ctx context.Context, load *feeds.Load, err error) error {
	if err != nil {
		return err
	}
	err = load.Wait(ctx)
	switch {
	case errors.Is(err, feeds.ErrFetch):
		fmt.Printf("Could not load feed: %v\n", err)
		return nil
	case errors.Is(err, feeds.ErrSuperseded):
		return nil
	}
	return err
}

func chooseFeed(list []models.Feed) (int, bool, error) {
	labels := lo.Map(list, func(f models.Feed, i int) string {
		return fmt.Sprintf("%d. %s", i, f.Name)
	})
	choice, err := prompt.New().Ask("Feed:").Choose(labels)
	if errors.Is(err, prompt.ErrUserQuit) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return lo.IndexOf(labels, choice), true, nil
}

func markRead(engine *widget.Engine) error {
	current := engine.Current()
	feed, err := engine.Feed(current)
	if err != nil {
		return err
	}
	if len(feed.Entries) == 0 {
		fmt.Println("No entries loaded")
		return nil
	}

	labels := lo.Map(feed.Entries, func(e models.Entry, i int) string {
		return fmt.Sprintf("%d. %s", i, e.Title)
	})
	choice, err := prompt.New().Ask("Entry:").Choose(labels)
	if errors.Is(err, prompt.ErrUserQuit) {
		return nil
	}
	if err != nil {
		return err
	}

	marked, err := engine.MarkRead(current, lo.IndexOf(labels, choice))
	if err != nil {
		return err
	}
	fmt.Println(marked.Link)
	return nil
}

func removeFavorite(engine *widget.Engine) error {
	all := engine.Feeds()
	favorites := lo.Filter(lo.Range(len(all)), func(i int, _ int) bool {
		return all[i].Favorite
	})
	if len(favorites) == 0 {
		fmt.Println("No favorites")
		return nil
	}

	labels := lo.Map(favorites, func(i int, _ int) string {
		return fmt.Sprintf("%d. %s", i, all[i].Name)
	})
	choice, err := prompt.New().Ask("Remove:").Choose(labels)
	if errors.Is(err, prompt.ErrUserQuit) {
		return nil
	}
	if err != nil {
		return err
	}
	return engine.RemoveFavorite(favorites[lo.IndexOf(labels, choice)])
}
