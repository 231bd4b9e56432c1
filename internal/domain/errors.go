package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been created.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrInvalidTransition is returned when an operator action does not apply to the current status.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrGuestNotRegistered is returned when a guest acts before registering a nickname.
	ErrGuestNotRegistered = errors.New("guest not registered in session")
	// ErrInvalidNickname indicates an empty or overlong nickname.
	ErrInvalidNickname = errors.New("invalid nickname")
	// ErrQuizNotFound indicates the answer key could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question number outside the answer key.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionNotActive is returned when answering a question that is not currently shown.
	ErrQuestionNotActive = errors.New("question is not open for answers")
	// ErrInvalidChoice indicates a choice index outside the option labels.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrDuplicateAnswer is returned when a guest answers the same question twice.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrAnswerWindowClosed is returned for late answers when the time limit is enforced.
	ErrAnswerWindowClosed = errors.New("answer time limit exceeded")
	// ErrStoreWrite wraps backend failures while persisting state.
	ErrStoreWrite = errors.New("store write failed")
	// ErrMalformedLedger indicates ranking input that cannot produce a correct ranking.
	ErrMalformedLedger = errors.New("malformed answer ledger")
)
