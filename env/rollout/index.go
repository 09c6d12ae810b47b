package rollout

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/traffic-rl/flowgrid/env/trace"
)

// Episode is one row of the episode index.
type Episode struct {
	Episode        int
	Seed           int64
	Steps          int
	TotalReward    float64
	MeanStepReward float64
	Collided       bool
	Reinsertions   int
	Rejections     int
	Path           string
	RecordedAt     string
}

// EpisodeFromSummary builds an index row from an episode trace summary.
func EpisodeFromSummary(episode int, seed int64, path string, s *trace.TraceSummary) Episode {
	return Episode{
		Episode:        episode,
		Seed:           seed,
		Steps:          s.Steps,
		TotalReward:    s.TotalReward,
		MeanStepReward: s.MeanStepReward,
		Collided:       s.Collided,
		Reinsertions:   s.ReinsertionAttempts,
		Rejections:     s.ReinsertionRejected,
		Path:           path,
	}
}

// Index is a SQLite table of finished episodes.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the index database at path.
func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS episodes (
		episode INTEGER PRIMARY KEY,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		total_reward REAL NOT NULL,
		mean_step_reward REAL NOT NULL,
		collided INTEGER NOT NULL,
		reinsertions INTEGER NOT NULL,
		rejections INTEGER NOT NULL,
		path TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);`)
	return err
}

// Record inserts or replaces the row for e.Episode. An empty RecordedAt is
// stamped with the current UTC time.
func (x *Index) Record(ctx context.Context, e Episode) error {
	if e.RecordedAt == "" {
		e.RecordedAt = time.Now().UTC().Format(time.RFC3339)
	}
	collided := 0
	if e.Collided {
		collided = 1
	}
	_, err := x.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO episodes(episode,seed,steps,total_reward,mean_step_reward,collided,reinsertions,rejections,path,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.Episode, e.Seed, e.Steps, e.TotalReward, e.MeanStepReward, collided, e.Reinsertions, e.Rejections, e.Path, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("recording episode %d: %w", e.Episode, err)
	}
	return nil
}

// Episodes returns up to limit rows, most recent episode first.
func (x *Index) Episodes(ctx context.Context, limit int) ([]Episode, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT episode,seed,steps,total_reward,mean_step_reward,collided,reinsertions,rejections,path,recorded_at FROM episodes ORDER BY episode DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		var e Episode
		var collided int
		if err := rows.Scan(&e.Episode, &e.Seed, &e.Steps, &e.TotalReward, &e.MeanStepReward, &collided, &e.Reinsertions, &e.Rejections, &e.Path, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Collided = collided != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (x *Index) Close() error {
	return x.db.Close()
}
