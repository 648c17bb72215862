// Package store archives collected posts and run statistics in a
// local SQLite database so reports can be regenerated across runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"xscraper/pkg/collector"
	"xscraper/pkg/models"
)

// Archive wraps the SQLite database.
type Archive struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// Open opens or creates the archive at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure archive: %w", err)
	}

	a := &Archive{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(db),
	}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error { return a.db.Close() }

func (a *Archive) migrate() error {
	_, err := a.db.Exec(`
	CREATE TABLE IF NOT EXISTS posts (
	  id TEXT PRIMARY KEY,
	  author_handle TEXT NOT NULL,
	  text TEXT NOT NULL,
	  timestamp_ms INTEGER NOT NULL,
	  is_reply INTEGER NOT NULL,
	  is_retweet INTEGER NOT NULL,
	  likes INTEGER NOT NULL,
	  retweets INTEGER NOT NULL,
	  replies INTEGER NOT NULL,
	  permalink TEXT,
	  hashtags TEXT,
	  urls TEXT,
	  run_id TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_author_ts ON posts(author_handle, timestamp_ms);
	CREATE TABLE IF NOT EXISTS runs (
	  run_id TEXT PRIMARY KEY,
	  handle TEXT NOT NULL,
	  started_at INTEGER NOT NULL,
	  finished_at INTEGER NOT NULL,
	  requests INTEGER NOT NULL,
	  rate_limit_hits INTEGER NOT NULL,
	  retries INTEGER NOT NULL,
	  unique_posts INTEGER NOT NULL,
	  fallback_posts INTEGER NOT NULL,
	  fallback_engaged INTEGER NOT NULL,
	  oldest_seen_ms INTEGER NOT NULL,
	  newest_seen_ms INTEGER NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate archive: %w", err)
	}
	return nil
}

// SavePosts inserts posts for one run. Ids already archived by an
// earlier run are left untouched, mirroring the in-run dedup rule.
// Returns how many rows were newly inserted.
func (a *Archive) SavePosts(ctx context.Context, runID string, posts []models.Post) (int, error) {
	inserted := 0
	for _, post := range posts {
		hashtags, urls := encodeList(post.Hashtags), encodeList(post.URLs)
		res, err := a.builder.
			Insert("posts").
			Columns("id", "author_handle", "text", "timestamp_ms", "is_reply", "is_retweet",
				"likes", "retweets", "replies", "permalink", "hashtags", "urls", "run_id").
			Values(post.ID, post.AuthorHandle, post.Text, post.TimestampMs, post.IsReply, post.IsRetweet,
				post.Likes, post.Retweets, post.Replies, post.Permalink, hashtags, urls, runID).
			Suffix("ON CONFLICT(id) DO NOTHING").
			ExecContext(ctx)
		if err != nil {
			return inserted, fmt.Errorf("failed to archive post %s: %w", post.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

// SaveRun records one run's final statistics.
func (a *Archive) SaveRun(ctx context.Context, handle string, stats collector.Stats) error {
	_, err := a.builder.
		Insert("runs").
		Columns("run_id", "handle", "started_at", "finished_at", "requests", "rate_limit_hits",
			"retries", "unique_posts", "fallback_posts", "fallback_engaged",
			"oldest_seen_ms", "newest_seen_ms").
		Values(stats.RunID, handle, stats.StartedAt.UnixMilli(), stats.FinishedAt.UnixMilli(),
			stats.Requests, stats.RateLimitHits, stats.Retries, stats.UniquePosts,
			stats.FallbackPosts, stats.FallbackEngaged, stats.OldestSeenMs, stats.NewestSeenMs).
		Suffix("ON CONFLICT(run_id) DO NOTHING").
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to archive run %s: %w", stats.RunID, err)
	}
	return nil
}

// PostsByHandle returns archived posts for handle within the
// millisecond window, newest first. Zero bounds are open.
func (a *Archive) PostsByHandle(ctx context.Context, handle string, sinceMs, untilMs int64) ([]models.Post, error) {
	query := a.builder.
		Select("id", "author_handle", "text", "timestamp_ms", "is_reply", "is_retweet",
			"likes", "retweets", "replies", "permalink", "hashtags", "urls").
		From("posts").
		Where(sq.Eq{"author_handle": handle}).
		OrderBy("timestamp_ms DESC")
	if sinceMs > 0 {
		query = query.Where(sq.GtOrEq{"timestamp_ms": sinceMs})
	}
	if untilMs > 0 {
		query = query.Where(sq.LtOrEq{"timestamp_ms": untilMs})
	}

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var post models.Post
		var permalink sql.NullString
		var hashtags, urls string
		if err := rows.Scan(&post.ID, &post.AuthorHandle, &post.Text, &post.TimestampMs,
			&post.IsReply, &post.IsRetweet, &post.Likes, &post.Retweets, &post.Replies,
			&permalink, &hashtags, &urls); err != nil {
			return nil, fmt.Errorf("failed to scan archived post: %w", err)
		}
		post.Permalink = permalink.String
		post.Hashtags = decodeList(hashtags)
		post.URLs = decodeList(urls)
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// RunCount returns how many runs are archived for handle.
func (a *Archive) RunCount(ctx context.Context, handle string) (int, error) {
	var count int
	err := a.builder.
		Select("COUNT(*)").
		From("runs").
		Where(sq.Eq{"handle": handle}).
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(data string) []string {
	data = strings.TrimSpace(data)
	if data == "" || data == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil
	}
	return items
}
