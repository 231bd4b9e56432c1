package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"wedding-quiz-service/internal/domain"
)

// AnswerKey is the bun model of an answer_keys row.
type AnswerKey struct {
	bun.BaseModel `bun:"table:answer_keys"`

	QuizID    string      `bun:"quiz_id,pk"`
	Data      domain.Quiz `bun:"data,type:jsonb"`
	UpdatedAt time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// SeedAnswerKey inserts or replaces the answer key of quiz.ID.
func SeedAnswerKey(ctx context.Context, db bun.IDB, quiz domain.Quiz) error {
	row := &AnswerKey{QuizID: quiz.ID, Data: quiz, UpdatedAt: time.Now()}
	_, err := db.NewInsert().
		Model(row).
		On("CONFLICT (quiz_id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
