package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wedding-quiz-service/internal/domain"
)

// ResultArchive keeps the final ranking of every finished round in quiz_results.
type ResultArchive struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewResultArchive(pool *pgxpool.Pool) *ResultArchive {
	return &ResultArchive{pool: pool, now: time.Now}
}

// SaveRanking replaces the stored ranking of the session's current round.
func (a *ResultArchive) SaveRanking(ctx context.Context, session domain.Session, entries []domain.RankingEntry) error {
	archivedAt := a.now()
	return a.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quiz_results WHERE session_id=$1 AND round=$2`, session.ID, session.Round); err != nil {
			return fmt.Errorf("clear ranking: %w", err)
		}
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`INSERT INTO quiz_results
				(session_id, round, rank, guest_id, nickname, correct_count, average_response_seconds, archived_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				session.ID, session.Round, e.Rank, e.GuestID, e.Nickname, e.CorrectCount, e.AverageResponseTime, archivedAt)
		}
		results := tx.SendBatch(ctx, batch)
		for range entries {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert ranking: %w", err)
			}
		}
		return results.Close()
	})
}

// Ranking returns an archived ranking. round <= 0 selects the latest archived round.
func (a *ResultArchive) Ranking(ctx context.Context, sessionID string, round int) ([]domain.RankingEntry, error) {
	if round <= 0 {
		err := a.pool.QueryRow(ctx, `SELECT COALESCE(MAX(round), 0) FROM quiz_results WHERE session_id=$1`, sessionID).Scan(&round)
		if err != nil {
			return nil, fmt.Errorf("latest round: %w", err)
		}
	}
	rows, err := a.pool.Query(ctx, `SELECT rank, guest_id, nickname, correct_count, average_response_seconds
		FROM quiz_results WHERE session_id=$1 AND round=$2 ORDER BY rank`, sessionID, round)
	if err != nil {
		return nil, fmt.Errorf("query ranking: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.RankingEntry, 0)
	for rows.Next() {
		var e domain.RankingEntry
		if err := rows.Scan(&e.Rank, &e.GuestID, &e.Nickname, &e.CorrectCount, &e.AverageResponseTime); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
