package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"wedding-quiz-service/internal/domain"
)

func ledgerAnswer(guest string, question, choice int) domain.GuestAnswer {
	return domain.GuestAnswer{
		GuestID:        guest,
		Nickname:       "nick-" + guest,
		QuestionNumber: question,
		Choice:         choice,
		AnsweredAt:     time.Date(2026, 6, 1, 20, 0, question, 0, time.UTC),
		IsCorrect:      choice == 0,
	}
}

func TestAnswerLedgerRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	mr, client := newServer(t)
	ledger := NewAnswerLedger(client, time.Hour)

	if err := ledger.Submit(ctx, "s1/r1", ledgerAnswer("g1", 2, 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := ledger.Submit(ctx, "s1/r1", ledgerAnswer("g1", 2, 3)); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected ErrDuplicateAnswer, got %v", err)
	}
	if err := ledger.Submit(ctx, "s1/r2", ledgerAnswer("g1", 2, 3)); err != nil {
		t.Fatalf("next round: %v", err)
	}

	got, err := ledger.Answers(ctx, "s1/r1", 2)
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(got) != 1 || got[0].Choice != 0 || !got[0].IsCorrect {
		t.Fatalf("expected only the first record, got %+v", got)
	}
	if ttl := mr.TTL("quiz:ledger:{s1/r1}:answers"); ttl != time.Hour {
		t.Fatalf("expected ledger ttl 1h, got %v", ttl)
	}
}

func TestAnswerLedgerFiltersByQuestion(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)
	ledger := NewAnswerLedger(client, 0)

	_ = ledger.Submit(ctx, "s1/r1", ledgerAnswer("g1", 1, 0))
	_ = ledger.Submit(ctx, "s1/r1", ledgerAnswer("g2", 2, 1))
	_ = ledger.Submit(ctx, "s1/r1", ledgerAnswer("g2", 1, 0))

	q1, _ := ledger.Answers(ctx, "s1/r1", 1)
	if len(q1) != 2 || q1[0].GuestID != "g1" || q1[1].GuestID != "g2" {
		t.Fatalf("expected g1,g2 in submission order, got %+v", q1)
	}
	all, _ := ledger.Answers(ctx, "s1/r1", domain.AllQuestions)
	if len(all) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(all))
	}
	empty, err := ledger.Answers(ctx, "other/r1", 1)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty ledger, got %v %v", empty, err)
	}
}

func TestAnswerLedgerSubscribe(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)
	ledger := NewAnswerLedger(client, 0)
	_ = ledger.Submit(ctx, "s1/r1", ledgerAnswer("g1", 1, 0))

	updates, cancel, err := ledger.Subscribe(ctx, "s1/r1", 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	waitFor(t, updates, func(a []domain.GuestAnswer) bool { return len(a) == 1 })

	_ = ledger.Submit(ctx, "s1/r1", ledgerAnswer("g2", 2, 0))
	_ = ledger.Submit(ctx, "s1/r1", ledgerAnswer("g2", 1, 1))
	got := waitFor(t, updates, func(a []domain.GuestAnswer) bool { return len(a) == 2 })
	for _, a := range got {
		if a.QuestionNumber != 1 {
			t.Fatalf("question 1 stream carried %+v", a)
		}
	}
}

func TestAnswerLedgerMalformedRecord(t *testing.T) {
	ctx := context.Background()
	mr, client := newServer(t)
	ledger := NewAnswerLedger(client, 0)
	if _, err := mr.Push("quiz:ledger:{s1/r1}:answers", "not json"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, err := ledger.Answers(ctx, "s1/r1", 1); !errors.Is(err, domain.ErrMalformedLedger) {
		t.Fatalf("expected ErrMalformedLedger, got %v", err)
	}
}
