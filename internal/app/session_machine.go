package app

import (
	"fmt"
	"time"

	"wedding-quiz-service/internal/domain"
)

// Action is an operator command against the session state machine.
type Action string

const (
	ActionStart   Action = "start"
	ActionAdvance Action = "advance"
	ActionBack    Action = "back"
	ActionReset   Action = "reset"
)

// ParseAction maps a command name to an Action.
func ParseAction(name string) (Action, bool) {
	switch a := Action(name); a {
	case ActionStart, ActionAdvance, ActionBack, ActionReset:
		return a, true
	}
	return "", false
}

// Apply computes the state that follows current under action. It never
// mutates current. changed is false when the action is a valid no-op
// (going back from the first question).
func Apply(current domain.Session, action Action, now time.Time) (next domain.Session, changed bool, err error) {
	next = current.Clone()

	switch action {
	case ActionStart:
		if current.Status != domain.StatusWaiting {
			return current, false, invalidTransition(current, action)
		}
		if current.TotalQuestions < 1 {
			return current, false, fmt.Errorf("%w: session has no questions", domain.ErrInvalidTransition)
		}
		next.Status = domain.StatusPlaying
		next.CurrentQuestion = 1
		next.StartedAt = &now
		next.FinishedAt = nil
		next.QuestionStartedAt = map[int]time.Time{}
		markQuestionStart(&next, now)

	case ActionAdvance:
		if current.Status != domain.StatusPlaying {
			return current, false, invalidTransition(current, action)
		}
		if current.CurrentQuestion >= current.TotalQuestions {
			next.Status = domain.StatusFinished
			next.CurrentQuestion = current.TotalQuestions
			next.FinishedAt = &now
		} else {
			next.CurrentQuestion++
			markQuestionStart(&next, now)
		}

	case ActionBack:
		if current.Status != domain.StatusPlaying {
			return current, false, invalidTransition(current, action)
		}
		if current.CurrentQuestion <= 1 {
			return current, false, nil
		}
		next.CurrentQuestion--

	case ActionReset:
		round := current.Round
		if round < 1 {
			round = 1
		}
		next.Status = domain.StatusWaiting
		next.CurrentQuestion = 1
		next.Round = round + 1
		next.StartedAt = nil
		next.FinishedAt = nil
		next.QuestionStartedAt = nil

	default:
		return current, false, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidTransition, action)
	}

	next.UpdatedAt = now
	return next, true, nil
}

// markQuestionStart records when the current question was first shown in this round.
// Revisiting a question after going back keeps the original start time.
func markQuestionStart(s *domain.Session, now time.Time) {
	if s.QuestionStartedAt == nil {
		s.QuestionStartedAt = map[int]time.Time{}
	}
	if _, ok := s.QuestionStartedAt[s.CurrentQuestion]; !ok {
		s.QuestionStartedAt[s.CurrentQuestion] = now
	}
}

func invalidTransition(s domain.Session, action Action) error {
	return fmt.Errorf("%w: cannot %s while %s", domain.ErrInvalidTransition, action, s.Status)
}
