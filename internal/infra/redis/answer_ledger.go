package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"wedding-quiz-service/internal/domain"
)

// submitScript appends an answer only if its guest/question field is new.
// KEYS: answered hash, answers list. ARGV: field, record, ttl in ms.
var submitScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], '1') == 0 then
  return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// AnswerLedger stores each ledger as a list of JSON records in submission
// order, guarded by a hash of answered guest/question pairs. Keys share the
// ledger ID as hash tag so the script stays on one cluster slot.
type AnswerLedger struct {
	client *redis.Client
	ttl    time.Duration
	relay  *relay[[]domain.GuestAnswer]
}

func NewAnswerLedger(client *redis.Client, ttl time.Duration) *AnswerLedger {
	return &AnswerLedger{
		client: client,
		ttl:    ttl,
		relay:  newRelay[[]domain.GuestAnswer](client),
	}
}

func (l *AnswerLedger) Submit(ctx context.Context, ledgerID string, answer domain.GuestAnswer) error {
	record, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	field := answer.GuestID + ":" + strconv.Itoa(answer.QuestionNumber)
	keys := []string{l.answeredKey(ledgerID), l.answersKey(ledgerID)}

	added, err := submitScript.Run(ctx, l.client, keys, field, record, l.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if added == 0 {
		return domain.ErrDuplicateAnswer
	}

	// The record is stored; a lost notification only delays viewers until the next one.
	if err := l.client.Publish(ctx, l.channel(ledgerID), answer.QuestionNumber).Err(); err != nil {
		log.Printf("ledger %s: notify failed: %v", ledgerID, err)
	}
	return nil
}

func (l *AnswerLedger) Answers(ctx context.Context, ledgerID string, questionNumber int) ([]domain.GuestAnswer, error) {
	records, err := l.client.LRange(ctx, l.answersKey(ledgerID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.GuestAnswer, 0, len(records))
	for i, raw := range records {
		var a domain.GuestAnswer
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("%w: ledger %s record %d: %v", domain.ErrMalformedLedger, ledgerID, i, err)
		}
		if questionNumber == domain.AllQuestions || a.QuestionNumber == questionNumber {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *AnswerLedger) Subscribe(ctx context.Context, ledgerID string, questionNumber int) (<-chan []domain.GuestAnswer, func(), error) {
	key := ledgerID + "#" + strconv.Itoa(questionNumber)
	return l.relay.subscribe(ctx, key, l.channel(ledgerID), func(ctx context.Context) ([]domain.GuestAnswer, error) {
		return l.Answers(ctx, ledgerID, questionNumber)
	})
}

func (l *AnswerLedger) answeredKey(ledgerID string) string {
	return "quiz:ledger:{" + ledgerID + "}:answered"
}

func (l *AnswerLedger) answersKey(ledgerID string) string {
	return "quiz:ledger:{" + ledgerID + "}:answers"
}

func (l *AnswerLedger) channel(ledgerID string) string {
	return "quiz:ledger:{" + ledgerID + "}:events"
}
