package app

import (
	"fmt"
	"sort"
	"time"

	"wedding-quiz-service/internal/domain"
)

// RankQuestion orders the correct answers to a single question by who
// answered first. Response times are measured from startedAt; a zero
// startedAt reports every response time as zero. n <= 0 keeps every entry.
func RankQuestion(answers []domain.GuestAnswer, startedAt time.Time, n int) ([]domain.RankingEntry, error) {
	correct := make([]domain.GuestAnswer, 0, len(answers))
	for i, a := range answers {
		if a.QuestionNumber != answers[0].QuestionNumber {
			return nil, fmt.Errorf("%w: record %d answers question %d, expected %d", domain.ErrMalformedLedger, i, a.QuestionNumber, answers[0].QuestionNumber)
		}
		if a.IsCorrect {
			correct = append(correct, a)
		}
	}

	sort.SliceStable(correct, func(i, j int) bool {
		return correct[i].AnsweredAt.Before(correct[j].AnsweredAt)
	})

	correct = limit(correct, n)
	entries := make([]domain.RankingEntry, 0, len(correct))
	for i, a := range correct {
		entries = append(entries, domain.RankingEntry{
			Rank:                i + 1,
			GuestID:             a.GuestID,
			Nickname:            a.Nickname,
			CorrectCount:        1,
			AverageResponseTime: elapsed(a, startedAt).Seconds(),
		})
	}
	return entries, nil
}

type tally struct {
	guestID  string
	nickname string
	correct  int
	total    time.Duration
}

// RankFinal accumulates every round of answers per guest: more correct answers
// win, then the lower average response time. Guests tied on both keep the order
// in which they first appear in answers. starts maps question numbers to the time
// each question opened. n <= 0 keeps every entry.
func RankFinal(answers []domain.GuestAnswer, starts map[int]time.Time, n int) ([]domain.RankingEntry, error) {
	byGuest := make(map[string]*tally)
	order := make([]*tally, 0)

	for i, a := range answers {
		if a.QuestionNumber < 1 {
			return nil, fmt.Errorf("%w: record %d has question number %d", domain.ErrMalformedLedger, i, a.QuestionNumber)
		}
		t, ok := byGuest[a.GuestID]
		if !ok {
			t = &tally{guestID: a.GuestID, nickname: a.Nickname}
			byGuest[a.GuestID] = t
			order = append(order, t)
		}
		if !a.IsCorrect {
			continue
		}
		t.correct++
		t.total += elapsed(a, starts[a.QuestionNumber])
	}

	ranked := make([]*tally, 0, len(order))
	for _, t := range order {
		if t.correct > 0 {
			ranked = append(ranked, t)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.correct != b.correct {
			return a.correct > b.correct
		}
		// a.total/a.correct < b.total/b.correct without float rounding.
		return int64(a.total)*int64(b.correct) < int64(b.total)*int64(a.correct)
	})

	ranked = limit(ranked, n)
	entries := make([]domain.RankingEntry, 0, len(ranked))
	for i, t := range ranked {
		entries = append(entries, domain.RankingEntry{
			Rank:                i + 1,
			GuestID:             t.guestID,
			Nickname:            t.nickname,
			CorrectCount:        t.correct,
			AverageResponseTime: t.total.Seconds() / float64(t.correct),
		})
	}
	return entries, nil
}

func elapsed(a domain.GuestAnswer, start time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	d := a.AnsweredAt.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

func limit[T any](items []T, n int) []T {
	if n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}
