package memory

import (
	"context"
	"sync"

	"wedding-quiz-service/internal/app"
	"wedding-quiz-service/internal/domain"
)

type answerKey struct {
	guestID        string
	questionNumber int
}

type ledger struct {
	answers  []domain.GuestAnswer
	answered map[answerKey]struct{}
	feeds    map[int]*app.Feed[[]domain.GuestAnswer]
}

// AnswerLedger is an in-memory implementation of app.AnswerLedger.
type AnswerLedger struct {
	mu      sync.Mutex
	ledgers map[string]*ledger
}

func NewAnswerLedger() *AnswerLedger {
	return &AnswerLedger{ledgers: make(map[string]*ledger)}
}

// Submit appends answer unless the guest already answered that question.
func (l *AnswerLedger) Submit(_ context.Context, ledgerID string, answer domain.GuestAnswer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lg := l.ledgerLocked(ledgerID)
	key := answerKey{guestID: answer.GuestID, questionNumber: answer.QuestionNumber}
	if _, ok := lg.answered[key]; ok {
		return domain.ErrDuplicateAnswer
	}
	lg.answered[key] = struct{}{}
	lg.answers = append(lg.answers, answer)

	for _, q := range []int{answer.QuestionNumber, domain.AllQuestions} {
		if feed, ok := lg.feeds[q]; ok {
			feed.Publish(lg.sliceLocked(q))
		}
	}
	return nil
}

func (l *AnswerLedger) Answers(_ context.Context, ledgerID string, questionNumber int) ([]domain.GuestAnswer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lg, ok := l.ledgers[ledgerID]
	if !ok {
		return []domain.GuestAnswer{}, nil
	}
	return lg.sliceLocked(questionNumber), nil
}

func (l *AnswerLedger) Subscribe(_ context.Context, ledgerID string, questionNumber int) (<-chan []domain.GuestAnswer, func(), error) {
	l.mu.Lock()
	lg := l.ledgerLocked(ledgerID)
	feed, ok := lg.feeds[questionNumber]
	if !ok {
		feed = app.NewFeed(lg.sliceLocked(questionNumber))
		lg.feeds[questionNumber] = feed
	}
	l.mu.Unlock()

	ch, cancel := feed.Subscribe()
	return ch, cancel, nil
}

func (l *AnswerLedger) ledgerLocked(id string) *ledger {
	if lg, ok := l.ledgers[id]; ok {
		return lg
	}
	lg := &ledger{
		answered: make(map[answerKey]struct{}),
		feeds:    make(map[int]*app.Feed[[]domain.GuestAnswer]),
	}
	l.ledgers[id] = lg
	return lg
}

// sliceLocked copies the answers for one question (or all) in submission order.
func (lg *ledger) sliceLocked(questionNumber int) []domain.GuestAnswer {
	out := make([]domain.GuestAnswer, 0, len(lg.answers))
	for _, a := range lg.answers {
		if questionNumber == domain.AllQuestions || a.QuestionNumber == questionNumber {
			out = append(out, a)
		}
	}
	return out
}
