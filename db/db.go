// Package db persists favorites and the read log in SQLite
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"feedreader/feeds"
	"feedreader/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// DB handles all database operations over a single SQLite connection
type DB struct {
	db *sql.DB
}

// Open connects to a migrated database
func Open(database string) (*DB, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", database, err)
	}
	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// SaveFavorite stores the favorite flag of a feed, deleting the row when unset
func (db *DB) SaveFavorite(ctx context.Context, feed models.Feed) error {
	var (
		query string
		args  []interface{}
	)

	if feed.Favorite {
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.ReplaceInto("favorites").Cols("url", "name", "created_at").Values(feed.URL, feed.Name, time.Now().Unix())
		query, args = ib.Build()
	} else {
		dl := sqlbuilder.SQLite.NewDeleteBuilder()
		dl.DeleteFrom("favorites").Where(dl.Equal("url", feed.URL))
		query, args = dl.Build()
	}

	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save favorite: %w", err)
	}
	return nil
}

// FavoriteURLs returns the urls of every stored favorite
func (db *DB) FavoriteURLs(ctx context.Context) ([]string, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("url").From("favorites").OrderBy("created_at").Asc()
	query, args := sb.Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// RecordRead appends an entry to the read log
func (db *DB) RecordRead(ctx context.Context, feedURL string, entry models.Entry, at time.Time) error {
	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("reads").Cols("feed_url", "title", "link", "read_at").Values(feedURL, entry.Title, entry.Link, at.Unix())
	query, args := ib.Build()

	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

// RecentReads returns the latest reads, newest first
func (db *DB) RecentReads(ctx context.Context, limit int) ([]models.ReadRecord, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("feed_url", "title", "link", "read_at").From("reads").OrderBy("id").Desc().Limit(limit)
	query, args := sb.Build()

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	records := []models.ReadRecord{}
	for rows.Next() {
		var (
			record models.ReadRecord
			readAt int64
		)
		if err := rows.Scan(&record.FeedURL, &record.Title, &record.Link, &readAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		record.ReadAt = time.Unix(readAt, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}

// Recorder writes store transitions through to the database. Failures are logged,
// the in-memory state stays authoritative.
type Recorder struct {
	DB      *DB
	Timeout time.Duration
}

func (r *Recorder) FavoriteChanged(feed models.Feed) {
	ctx, cancel := r.context()
	defer cancel()

	if err := r.DB.SaveFavorite(ctx, feed); err != nil {
		log.WithFields(log.Fields{
			"url":   feed.URL,
			"error": err,
		}).Error("Error saving favorite")
	}
}

func (r *Recorder) EntryRead(feed models.Feed, entry models.Entry) {
	ctx, cancel := r.context()
	defer cancel()

	if err := r.DB.RecordRead(ctx, feed.URL, entry, time.Now()); err != nil {
		log.WithFields(log.Fields{
			"url":   feed.URL,
			"link":  entry.Link,
			"error": err,
		}).Error("Error recording read entry")
	}
}

func (r *Recorder) context() (context.Context, context.CancelFunc) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

var _ feeds.Recorder = (*Recorder)(nil)
