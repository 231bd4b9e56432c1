package domain

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle phase of a quiz session.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"
	StatusPlaying  SessionStatus = "playing"
	StatusFinished SessionStatus = "finished"
)

// AllQuestions selects the whole ledger instead of a single question slice.
const AllQuestions = 0

// Session is the single authoritative record of where the quiz currently is.
// Only the operator mutates it; every viewer receives copies.
type Session struct {
	ID                string            `json:"sessionId"`
	QuizID            string            `json:"quizId"`
	Status            SessionStatus     `json:"status"`
	CurrentQuestion   int               `json:"currentQuestion"`
	TotalQuestions    int               `json:"totalQuestions"`
	Round             int               `json:"round"`
	StartedAt         *time.Time        `json:"startedAt,omitempty"`
	FinishedAt        *time.Time        `json:"finishedAt,omitempty"`
	QuestionStartedAt map[int]time.Time `json:"questionStartedAt,omitempty"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// DefaultSession is what subscribers see before the operator has written anything.
func DefaultSession(id string) Session {
	return Session{
		ID:              id,
		Status:          StatusWaiting,
		CurrentQuestion: 1,
		Round:           1,
	}
}

// LedgerID scopes answers to one round of a session, so a reset starts from
// an empty ledger while earlier rounds stay stored.
func (s Session) LedgerID() string {
	round := s.Round
	if round < 1 {
		round = 1
	}
	return fmt.Sprintf("%s/r%d", s.ID, round)
}

// QuestionStart returns the recorded start time of a question, if any.
func (s Session) QuestionStart(number int) (time.Time, bool) {
	t, ok := s.QuestionStartedAt[number]
	return t, ok
}

// Clone returns a copy that shares no mutable state with s.
func (s Session) Clone() Session {
	out := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	if s.QuestionStartedAt != nil {
		out.QuestionStartedAt = make(map[int]time.Time, len(s.QuestionStartedAt))
		for k, v := range s.QuestionStartedAt {
			out.QuestionStartedAt[k] = v
		}
	}
	return out
}

// GuestAnswer is one immutable submission. Nickname is copied at submission
// time and IsCorrect is evaluated once against the answer key.
type GuestAnswer struct {
	GuestID        string    `json:"guestId"`
	Nickname       string    `json:"nickname"`
	QuestionNumber int       `json:"questionNumber"`
	Choice         int       `json:"choice"`
	AnsweredAt     time.Time `json:"answeredAt"`
	IsCorrect      bool      `json:"isCorrect"`
}

// Guest is a registered participant of a session.
type Guest struct {
	GuestID  string    `json:"guestId"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RankingEntry is derived from the ledger on demand and never stored in place.
type RankingEntry struct {
	Rank                int     `json:"rank"`
	GuestID             string  `json:"guestId"`
	Nickname            string  `json:"nickname"`
	CorrectCount        int     `json:"correctCount"`
	AverageResponseTime float64 `json:"averageResponseTime"` // seconds
}

// Question is one entry of the answer key.
type Question struct {
	Number           int `json:"number"`
	CorrectAnswer    int `json:"correctAnswer"`
	TimeLimitSeconds int `json:"timeLimitSeconds"` // defaults to the quiz time limit if zero
}

// Quiz is the static answer key a session is scored against.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Question looks up a question by its 1-based number.
func (q Quiz) Question(number int) (Question, bool) {
	for _, question := range q.Questions {
		if question.Number == number {
			return question, true
		}
	}
	return Question{}, false
}
