package db

import (
	"context"
	"fmt"
	"time"

	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

const DefaultRetention = 90 * 24 * time.Hour

// Tidy removes read log entries recorded before cutoff and returns how many were removed
func (db *DB) Tidy(ctx context.Context, cutoff time.Time) (int64, error) {
	deleteReads := sb.SQLite.NewDeleteBuilder()
	query, args := deleteReads.DeleteFrom("reads").Where(deleteReads.LessThan("read_at", cutoff.Unix())).Build()

	log.WithFields(log.Fields{
		"sql":  query,
		"args": args,
	}).Info("Tidying database")

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}
	return res.RowsAffected()
}
