package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"wedding-quiz-service/internal/domain"
)

func answer(guest string, question int, at time.Time) domain.GuestAnswer {
	return domain.GuestAnswer{GuestID: guest, Nickname: guest, QuestionNumber: question, AnsweredAt: at, IsCorrect: true}
}

func TestAnswerLedgerRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	ledger := NewAnswerLedger()
	now := time.Now()

	if err := ledger.Submit(ctx, "s1/r1", answer("g1", 1, now)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	second := answer("g1", 1, now.Add(time.Second))
	second.Choice = 2
	if err := ledger.Submit(ctx, "s1/r1", second); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected ErrDuplicateAnswer, got %v", err)
	}
	if err := ledger.Submit(ctx, "s1/r1", answer("g1", 2, now)); err != nil {
		t.Fatalf("other question: %v", err)
	}
	if err := ledger.Submit(ctx, "s1/r2", answer("g1", 1, now)); err != nil {
		t.Fatalf("other round: %v", err)
	}

	got, err := ledger.Answers(ctx, "s1/r1", 1)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(got) != 1 || got[0].Choice != 0 {
		t.Fatalf("expected the first answer to be kept, got %+v", got)
	}
	all, _ := ledger.Answers(ctx, "s1/r1", domain.AllQuestions)
	if len(all) != 2 {
		t.Fatalf("expected 2 answers across questions, got %d", len(all))
	}
}

func TestAnswerLedgerSubscribeByQuestion(t *testing.T) {
	ctx := context.Background()
	ledger := NewAnswerLedger()
	now := time.Now()
	_ = ledger.Submit(ctx, "s1/r1", answer("g1", 1, now))

	q1, cancel1, _ := ledger.Subscribe(ctx, "s1/r1", 1)
	defer cancel1()
	all, cancelAll, _ := ledger.Subscribe(ctx, "s1/r1", domain.AllQuestions)
	defer cancelAll()

	if got := recv(t, q1); len(got) != 1 {
		t.Fatalf("expected existing answer on subscribe, got %d", len(got))
	}
	recv(t, all)

	_ = ledger.Submit(ctx, "s1/r1", answer("g2", 2, now))
	if got := recv(t, all); len(got) != 2 {
		t.Fatalf("expected 2 answers in full ledger, got %d", len(got))
	}
	select {
	case got := <-q1:
		t.Fatalf("question 1 subscriber saw a question 2 answer: %+v", got)
	case <-time.After(20 * time.Millisecond):
	}

	_ = ledger.Submit(ctx, "s1/r1", answer("g2", 1, now))
	got := recv(t, q1)
	if len(got) != 2 || got[0].GuestID != "g1" || got[1].GuestID != "g2" {
		t.Fatalf("expected submission order g1,g2, got %+v", got)
	}
}

func TestAnswerLedgerEmpty(t *testing.T) {
	got, err := NewAnswerLedger().Answers(context.Background(), "nope/r1", 1)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v %v", got, err)
	}
}
