package app

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"wedding-quiz-service/internal/domain"
)

var t0 = time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)

func waitingSession(total int) domain.Session {
	s := domain.DefaultSession("s1")
	s.TotalQuestions = total
	return s
}

func mustApply(t *testing.T, s domain.Session, action Action, now time.Time) domain.Session {
	t.Helper()
	next, _, err := Apply(s, action, now)
	if err != nil {
		t.Fatalf("%s: %v", action, err)
	}
	return next
}

func TestStartOpensFirstQuestion(t *testing.T) {
	s := mustApply(t, waitingSession(5), ActionStart, t0)

	if s.Status != domain.StatusPlaying || s.CurrentQuestion != 1 {
		t.Fatalf("expected playing q1, got %s q%d", s.Status, s.CurrentQuestion)
	}
	if s.StartedAt == nil || !s.StartedAt.Equal(t0) {
		t.Fatalf("expected startedAt %v, got %v", t0, s.StartedAt)
	}
	if start, ok := s.QuestionStart(1); !ok || !start.Equal(t0) {
		t.Fatalf("expected question 1 start recorded")
	}
	if _, _, err := Apply(s, ActionStart, t0); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected second start to fail, got %v", err)
	}
}

func TestAdvanceThroughAllQuestionsFinishes(t *testing.T) {
	const total = 5
	s := mustApply(t, waitingSession(total), ActionStart, t0)

	for i := 1; i < total; i++ {
		s = mustApply(t, s, ActionAdvance, t0.Add(time.Duration(i)*time.Minute))
		if s.CurrentQuestion != i+1 || s.Status != domain.StatusPlaying {
			t.Fatalf("advance %d: got %s q%d", i, s.Status, s.CurrentQuestion)
		}
	}
	s = mustApply(t, s, ActionAdvance, t0.Add(time.Hour))

	if s.Status != domain.StatusFinished {
		t.Fatalf("expected finished after %d advances, got %s", total, s.Status)
	}
	if s.CurrentQuestion != total {
		t.Fatalf("expected current question to stay at %d, got %d", total, s.CurrentQuestion)
	}
	if s.FinishedAt == nil {
		t.Fatalf("expected finishedAt")
	}
	if len(s.QuestionStartedAt) != total {
		t.Fatalf("expected %d question start times, got %d", total, len(s.QuestionStartedAt))
	}
}

func TestBackStaysWithinBounds(t *testing.T) {
	s := mustApply(t, waitingSession(3), ActionStart, t0)

	next, changed, err := Apply(s, ActionBack, t0.Add(time.Second))
	if err != nil || changed {
		t.Fatalf("expected back at q1 to be a no-op, got changed=%v err=%v", changed, err)
	}
	if next.CurrentQuestion != 1 {
		t.Fatalf("expected q1, got %d", next.CurrentQuestion)
	}

	s = mustApply(t, s, ActionAdvance, t0.Add(time.Minute))
	s = mustApply(t, s, ActionBack, t0.Add(2*time.Minute))
	if s.CurrentQuestion != 1 {
		t.Fatalf("expected back to q1, got %d", s.CurrentQuestion)
	}
	s = mustApply(t, s, ActionAdvance, t0.Add(3*time.Minute))
	if start, _ := s.QuestionStart(2); !start.Equal(t0.Add(time.Minute)) {
		t.Fatalf("revisited question kept a new start time %v", start)
	}
}

func TestFinishedOnlyAllowsReset(t *testing.T) {
	s := mustApply(t, waitingSession(1), ActionStart, t0)
	s = mustApply(t, s, ActionAdvance, t0.Add(time.Minute))

	for _, action := range []Action{ActionStart, ActionAdvance, ActionBack} {
		if _, _, err := Apply(s, action, t0); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("%s from finished: expected ErrInvalidTransition, got %v", action, err)
		}
	}

	s = mustApply(t, s, ActionReset, t0.Add(2*time.Minute))
	if s.Status != domain.StatusWaiting || s.CurrentQuestion != 1 || s.Round != 2 {
		t.Fatalf("expected waiting q1 round 2, got %s q%d round %d", s.Status, s.CurrentQuestion, s.Round)
	}
	if s.StartedAt != nil || s.FinishedAt != nil || s.QuestionStartedAt != nil {
		t.Fatalf("expected timestamps cleared after reset")
	}
	if s.LedgerID() != "s1/r2" {
		t.Fatalf("expected a fresh ledger, got %s", s.LedgerID())
	}
}

func TestWaitingRejectsAdvanceAndBack(t *testing.T) {
	for _, action := range []Action{ActionAdvance, ActionBack} {
		if _, _, err := Apply(waitingSession(5), action, t0); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("%s while waiting: expected ErrInvalidTransition, got %v", action, err)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := mustApply(t, waitingSession(5), ActionStart, t0)
	_ = mustApply(t, s, ActionAdvance, t0.Add(time.Minute))

	if s.CurrentQuestion != 1 || len(s.QuestionStartedAt) != 1 {
		t.Fatalf("input session was mutated: %+v", s)
	}
}

func TestParseAction(t *testing.T) {
	if a, ok := ParseAction("advance"); !ok || a != ActionAdvance {
		t.Fatalf("expected advance, got %q %v", a, ok)
	}
	if _, ok := ParseAction("skip"); ok {
		t.Fatalf("expected unknown action to be rejected")
	}
}

func TestRandomTransitionsStayWithinBounds(t *testing.T) {
	actions := []Action{ActionStart, ActionAdvance, ActionBack, ActionReset}
	for _, total := range []int{1, 2, 5} {
		rnd := rand.New(rand.NewSource(int64(total)))
		s := waitingSession(total)
		now := t0
		for step := 0; step < 500; step++ {
			action := actions[rnd.Intn(len(actions))]
			now = now.Add(time.Second)
			next, _, err := Apply(s, action, now)
			if err != nil {
				if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("total %d step %d %s: unexpected error %v", total, step, action, err)
				}
				next = s
			}
			if next.CurrentQuestion < 1 || next.CurrentQuestion > total {
				t.Fatalf("total %d step %d %s: question %d out of range", total, step, action, next.CurrentQuestion)
			}
			if next.Status == domain.StatusWaiting && next.CurrentQuestion != 1 {
				t.Fatalf("total %d step %d %s: waiting at question %d", total, step, action, next.CurrentQuestion)
			}
			if (next.Status == domain.StatusFinished) != (next.FinishedAt != nil) {
				t.Fatalf("total %d step %d %s: status %s with finishedAt %v", total, step, action, next.Status, next.FinishedAt)
			}
			s = next
		}
	}
}
