package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"wedding-quiz-service/internal/domain"
)

// SessionStore holds the authoritative session record. Save must not notify
// subscribers unless the write was persisted.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	// Subscribe delivers the last known session (or domain.DefaultSession) first.
	Subscribe(ctx context.Context, sessionID string) (<-chan domain.Session, func(), error)
}

// AnswerLedger is the append-only answer collection of one ledger ID
// (see domain.Session.LedgerID). questionNumber domain.AllQuestions selects everything.
type AnswerLedger interface {
	// Submit returns domain.ErrDuplicateAnswer if the guest already answered the question.
	Submit(ctx context.Context, ledgerID string, answer domain.GuestAnswer) error
	Answers(ctx context.Context, ledgerID string, questionNumber int) ([]domain.GuestAnswer, error)
	Subscribe(ctx context.Context, ledgerID string, questionNumber int) (<-chan []domain.GuestAnswer, func(), error)
}

// GuestRegistry tracks the registered guests of a session.
type GuestRegistry interface {
	Register(ctx context.Context, sessionID string, guest domain.Guest) error
	Guest(ctx context.Context, sessionID, guestID string) (domain.Guest, error)
	Count(ctx context.Context, sessionID string) (int, error)
	SubscribeCount(ctx context.Context, sessionID string) (<-chan int, func(), error)
}

// QuizRepository loads answer keys (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultArchive keeps final rankings once a session finishes.
type ResultArchive interface {
	SaveRanking(ctx context.Context, session domain.Session, entries []domain.RankingEntry) error
}

// Settings are the static quiz parameters loaded from configuration.
type Settings struct {
	QuizID              string
	TotalQuestions      int
	TimeLimit           time.Duration
	RankingDisplayCount int
	ChoiceCount         int
	EnforceTimeLimit    bool
	MaxNicknameLength   int
}

// QuizService contains the operator, guest and viewer use cases.
type QuizService struct {
	sessions SessionStore
	ledger   AnswerLedger
	guests   GuestRegistry
	quizzes  QuizRepository
	archive  ResultArchive
	settings Settings
	now      func() time.Time
	newID    func() string

	// opMu serializes read-modify-write of operator transitions in this process.
	opMu sync.Mutex
}

type Option func(*QuizService)

// WithClock replaces time.Now, for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithResultArchive stores final rankings when a session finishes.
func WithResultArchive(archive ResultArchive) Option {
	return func(s *QuizService) { s.archive = archive }
}

func NewQuizService(sessions SessionStore, ledger AnswerLedger, guests GuestRegistry, quizzes QuizRepository, settings Settings, opts ...Option) *QuizService {
	s := &QuizService{
		sessions: sessions,
		ledger:   ledger,
		guests:   guests,
		quizzes:  quizzes,
		settings: settings,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the quiz parameters the service was built with.
func (s *QuizService) Settings() Settings {
	return s.settings
}

// CreateSession opens a new session in the waiting state.
func (s *QuizService) CreateSession(ctx context.Context) (domain.Session, error) {
	// Sessions cannot be scored against an answer key that does not load.
	if _, err := s.quizzes.GetQuiz(ctx, s.settings.QuizID); err != nil {
		return domain.Session{}, err
	}

	session := domain.DefaultSession(s.newID())
	session.QuizID = s.settings.QuizID
	session.TotalQuestions = s.settings.TotalQuestions
	session.UpdatedAt = s.now()

	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.Session{}, writeFailed("create session", err)
	}
	log.Printf("session %s created for quiz %s", session.ID, session.QuizID)
	return session, nil
}

// Session returns the current persisted state, for viewers recovering from a missed push.
func (s *QuizService) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

func (s *QuizService) Start(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.Apply(ctx, sessionID, ActionStart)
}

func (s *QuizService) Advance(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.Apply(ctx, sessionID, ActionAdvance)
}

func (s *QuizService) Back(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.Apply(ctx, sessionID, ActionBack)
}

func (s *QuizService) Reset(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.Apply(ctx, sessionID, ActionReset)
}

// Apply runs an operator action. The returned session is the state the store
// acknowledged; on a failed write the error wraps domain.ErrStoreWrite and the
// previous state stays current.
func (s *QuizService) Apply(ctx context.Context, sessionID string, action Action) (domain.Session, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	next, changed, err := Apply(current, action, s.now())
	if err != nil {
		return domain.Session{}, err
	}
	if !changed {
		return current, nil
	}

	if err := s.sessions.Save(ctx, next); err != nil {
		log.Printf("session %s: %s not persisted: %v", sessionID, action, err)
		return domain.Session{}, writeFailed("save session", err)
	}
	log.Printf("session %s: %s -> %s q%d/%d round %d", sessionID, action, next.Status, next.CurrentQuestion, next.TotalQuestions, next.Round)

	if next.Status == domain.StatusFinished && current.Status != domain.StatusFinished {
		s.archiveFinal(ctx, next)
	}
	return next, nil
}

func (s *QuizService) archiveFinal(ctx context.Context, session domain.Session) {
	if s.archive == nil {
		return
	}
	entries, err := s.rankFinal(ctx, session, -1)
	if err != nil {
		log.Printf("session %s: final ranking failed: %v", session.ID, err)
		return
	}
	if err := s.archive.SaveRanking(ctx, session, entries); err != nil {
		log.Printf("session %s: archive ranking failed: %v", session.ID, err)
	}
}

// Register records a guest's nickname for a session. Registering again with the
// same guest ID only refreshes the nickname.
func (s *QuizService) Register(ctx context.Context, sessionID, guestID, nickname string) (domain.Guest, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return domain.Guest{}, fmt.Errorf("%w: nickname is required", domain.ErrInvalidNickname)
	}
	if maxLen := s.settings.MaxNicknameLength; maxLen > 0 && utf8.RuneCountInString(nickname) > maxLen {
		return domain.Guest{}, fmt.Errorf("%w: at most %d characters", domain.ErrInvalidNickname, maxLen)
	}
	if guestID == "" {
		return domain.Guest{}, domain.ErrGuestNotRegistered
	}
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return domain.Guest{}, err
	}

	guest := domain.Guest{GuestID: guestID, Nickname: nickname, JoinedAt: s.now()}
	if err := s.guests.Register(ctx, sessionID, guest); err != nil {
		return domain.Guest{}, writeFailed("register guest", err)
	}
	return s.guests.Guest(ctx, sessionID, guestID)
}

// SubmitAnswer scores and records a guest's answer to the question on screen.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID, guestID string, questionNumber, choice int) (domain.GuestAnswer, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.GuestAnswer{}, err
	}
	if questionNumber < 1 || questionNumber > session.TotalQuestions {
		return domain.GuestAnswer{}, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, questionNumber)
	}
	if session.Status != domain.StatusPlaying || session.CurrentQuestion != questionNumber {
		return domain.GuestAnswer{}, fmt.Errorf("%w: question %d", domain.ErrQuestionNotActive, questionNumber)
	}
	if choice < 0 || choice >= s.settings.ChoiceCount {
		return domain.GuestAnswer{}, fmt.Errorf("%w: %d", domain.ErrInvalidChoice, choice)
	}

	guest, err := s.guests.Guest(ctx, sessionID, guestID)
	if err != nil {
		return domain.GuestAnswer{}, err
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.GuestAnswer{}, err
	}
	question, ok := quiz.Question(questionNumber)
	if !ok {
		return domain.GuestAnswer{}, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, questionNumber)
	}

	answeredAt := s.now()
	if s.settings.EnforceTimeLimit {
		if err := s.checkWindow(session, question, answeredAt); err != nil {
			return domain.GuestAnswer{}, err
		}
	}

	answer := domain.GuestAnswer{
		GuestID:        guest.GuestID,
		Nickname:       guest.Nickname,
		QuestionNumber: questionNumber,
		Choice:         choice,
		AnsweredAt:     answeredAt,
		IsCorrect:      choice == question.CorrectAnswer,
	}
	if err := s.ledger.Submit(ctx, session.LedgerID(), answer); err != nil {
		if errors.Is(err, domain.ErrDuplicateAnswer) {
			return domain.GuestAnswer{}, err
		}
		return domain.GuestAnswer{}, writeFailed("submit answer", err)
	}
	return answer, nil
}

func (s *QuizService) checkWindow(session domain.Session, question domain.Question, answeredAt time.Time) error {
	start, ok := session.QuestionStart(question.Number)
	if !ok {
		return nil
	}
	window := s.settings.TimeLimit
	if question.TimeLimitSeconds > 0 {
		window = time.Duration(question.TimeLimitSeconds) * time.Second
	}
	if window > 0 && answeredAt.Sub(start) > window {
		return fmt.Errorf("%w: %s allowed", domain.ErrAnswerWindowClosed, window)
	}
	return nil
}

// Answers returns the current round's answers, for one question or domain.AllQuestions.
func (s *QuizService) Answers(ctx context.Context, sessionID string, questionNumber int) ([]domain.GuestAnswer, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Answers(ctx, session.LedgerID(), questionNumber)
}

// QuestionRanking ranks the first correct answers to one question. n <= 0 returns all.
func (s *QuizService) QuestionRanking(ctx context.Context, sessionID string, questionNumber, n int) ([]domain.RankingEntry, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if questionNumber < 1 || questionNumber > session.TotalQuestions {
		return nil, fmt.Errorf("%w: %d", domain.ErrQuestionNotFound, questionNumber)
	}
	answers, err := s.ledger.Answers(ctx, session.LedgerID(), questionNumber)
	if err != nil {
		return nil, err
	}
	start, _ := session.QuestionStart(questionNumber)
	return RankQuestion(answers, start, n)
}

// FinalRanking ranks guests over the whole round. n <= 0 returns all.
func (s *QuizService) FinalRanking(ctx context.Context, sessionID string, n int) ([]domain.RankingEntry, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.rankFinal(ctx, session, n)
}

func (s *QuizService) rankFinal(ctx context.Context, session domain.Session, n int) ([]domain.RankingEntry, error) {
	answers, err := s.ledger.Answers(ctx, session.LedgerID(), domain.AllQuestions)
	if err != nil {
		return nil, err
	}
	return RankFinal(answers, session.QuestionStartedAt, n)
}

// SubscribeSession streams session snapshots. The caller must invoke cancel to avoid leaks.
func (s *QuizService) SubscribeSession(ctx context.Context, sessionID string) (<-chan domain.Session, func(), error) {
	return s.sessions.Subscribe(ctx, sessionID)
}

// SubscribeAnswers streams answer snapshots of a ledger (see domain.Session.LedgerID).
func (s *QuizService) SubscribeAnswers(ctx context.Context, ledgerID string, questionNumber int) (<-chan []domain.GuestAnswer, func(), error) {
	return s.ledger.Subscribe(ctx, ledgerID, questionNumber)
}

// SubscribeGuestCount streams the number of registered guests.
func (s *QuizService) SubscribeGuestCount(ctx context.Context, sessionID string) (<-chan int, func(), error) {
	return s.guests.SubscribeCount(ctx, sessionID)
}

func (s *QuizService) GuestCount(ctx context.Context, sessionID string) (int, error) {
	return s.guests.Count(ctx, sessionID)
}

func writeFailed(op string, err error) error {
	if errors.Is(err, domain.ErrStoreWrite) || errors.Is(err, domain.ErrSessionNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreWrite, op, err)
}
