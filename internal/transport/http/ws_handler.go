package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"wedding-quiz-service/internal/app"
	"wedding-quiz-service/internal/domain"
)

const (
	roleScreen   = "screen"
	roleGuest    = "guest"
	roleOperator = "operator"
)

type WSHandler struct {
	service  *app.QuizService
	api      *API
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, api *API) *WSHandler {
	return &WSHandler{
		service: service,
		api:     api,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type actionPayload struct {
	Action string `json:"action"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// answersPayload describes the answers to the question on screen. Choices
// are only included for the operator and for screens holding the operator token.
type answersPayload struct {
	LedgerID       string               `json:"ledgerId"`
	QuestionNumber int                  `json:"questionNumber"`
	Count          int                  `json:"count"`
	Answered       bool                 `json:"answered,omitempty"`
	Answers        []domain.GuestAnswer `json:"answers,omitempty"`
}

type viewer struct {
	role     string
	guestID  string
	detailed bool
	emit     func(outboundMessage[any]) bool
	rankSize int
}

// ServeWS streams a session to a screen, guest or operator client. Every
// client receives session, guestCount and answers messages, plus the final
// ranking once the session finishes. Guests may send answers and operators
// may send actions over the same connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sessionID := ps.ByName("id")
	role := r.URL.Query().Get("role")
	switch role {
	case "":
		role = roleScreen
	case roleScreen, roleGuest:
	case roleOperator:
		if !authorizeOperator(r, h.api.opts.OperatorToken) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "operator token required"})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "role must be screen, guest or operator"})
		return
	}
	if _, err := h.service.Session(r.Context(), sessionID); err != nil {
		writeServiceError(w, err)
		return
	}

	var guestID string
	if role == roleGuest {
		guestID, _ = h.api.identity(w, r).GuestID()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions, cancelSessions, err := h.service.SubscribeSession(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
		return
	}
	defer cancelSessions()
	counts, cancelCounts, err := h.service.SubscribeGuestCount(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
		return
	}
	defer cancelCounts()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pumpDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				_ = conn.Close()
				return
			}
		}
	}()

	v := viewer{
		role:     role,
		guestID:  guestID,
		detailed: role == roleOperator || (role == roleScreen && authorizeOperator(r, h.api.opts.OperatorToken)),
		rankSize: h.service.Settings().RankingDisplayCount,
		emit: func(msg outboundMessage[any]) bool {
			select {
			case send <- msg:
				return true
			case <-writerDone:
				return false
			}
		},
	}

	go func() {
		defer close(pumpDone)
		h.pump(ctx, v, sessions, counts, closeSignals)
	}()

	h.api.logf("ws %s: %s connected", sessionID, role)
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleInbound(ctx, v, sessionID, inbound)
	}
	h.api.logf("ws %s: %s disconnected", sessionID, role)

	close(closeSignals)
	<-pumpDone
	close(send)
	<-writerDone
}

// pump forwards store updates to the client. The answers subscription
// follows the session: it is replaced whenever the current question or the
// round's ledger changes.
func (h *WSHandler) pump(ctx context.Context, v viewer, sessions <-chan domain.Session, counts <-chan int, done <-chan struct{}) {
	var (
		answers       <-chan []domain.GuestAnswer
		cancelAnswers func()
		ledgerID      string
		question      int
		rankedLedger  string
	)
	defer func() {
		if cancelAnswers != nil {
			cancelAnswers()
		}
	}()

	for {
		select {
		case <-done:
			return

		case session, ok := <-sessions:
			if !ok {
				return
			}
			if !v.emit(outboundMessage[any]{Type: "session", Payload: session}) {
				return
			}

			if session.LedgerID() != ledgerID || session.CurrentQuestion != question {
				if cancelAnswers != nil {
					cancelAnswers()
					answers, cancelAnswers = nil, nil
				}
				ledgerID, question = session.LedgerID(), session.CurrentQuestion
				ch, cancel, err := h.service.SubscribeAnswers(ctx, ledgerID, question)
				if err != nil {
					log.Printf("ws %s: subscribe answers: %v", session.ID, err)
					v.emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
				} else {
					answers, cancelAnswers = ch, cancel
				}
			}

			if session.Status == domain.StatusFinished && rankedLedger != ledgerID {
				ranking, err := h.service.FinalRanking(ctx, session.ID, v.rankSize)
				if err != nil {
					v.emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
					continue
				}
				rankedLedger = ledgerID
				if !v.emit(outboundMessage[any]{Type: "ranking", Payload: ranking}) {
					return
				}
			}

		case n, ok := <-counts:
			if !ok {
				return
			}
			if !v.emit(outboundMessage[any]{Type: "guestCount", Payload: countResponse{Count: n}}) {
				return
			}

		case list, ok := <-answers:
			if !ok {
				answers = nil
				continue
			}
			if !v.emit(outboundMessage[any]{Type: "answers", Payload: v.answersPayload(ledgerID, question, list)}) {
				return
			}
		}
	}
}

func (v viewer) answersPayload(ledgerID string, question int, list []domain.GuestAnswer) answersPayload {
	return summarizeAnswers(ledgerID, question, list, v.detailed, v.guestID)
}

// summarizeAnswers hides choices from everyone but authorized viewers. Others
// get the count and, for a known guest, whether that guest has answered.
func summarizeAnswers(ledgerID string, question int, list []domain.GuestAnswer, detailed bool, guestID string) answersPayload {
	p := answersPayload{LedgerID: ledgerID, QuestionNumber: question, Count: len(list)}
	if detailed {
		p.Answers = list
		return p
	}
	if guestID == "" {
		return p
	}
	for _, a := range list {
		if a.GuestID == guestID {
			p.Answered = true
			break
		}
	}
	return p
}

func (h *WSHandler) handleInbound(ctx context.Context, v viewer, sessionID string, inbound inboundMessage) {
	fail := func(message string) {
		v.emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	}

	switch {
	case inbound.Type == "answer" && v.role == roleGuest:
		var payload answerRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid answer payload")
			return
		}
		if v.guestID == "" {
			fail(domain.ErrGuestNotRegistered.Error())
			return
		}
		answer, err := h.service.SubmitAnswer(ctx, sessionID, v.guestID, payload.QuestionNumber, payload.Choice)
		if err != nil {
			fail(errorMessage(err))
			return
		}
		v.emit(outboundMessage[any]{Type: "answerResult", Payload: answer})

	case inbound.Type == "action" && v.role == roleOperator:
		var payload actionPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail("invalid action payload")
			return
		}
		action, ok := app.ParseAction(payload.Action)
		if !ok {
			fail("unknown action " + payload.Action)
			return
		}
		resp, err := h.api.applyAction(ctx, sessionID, action)
		if err != nil {
			fail(errorMessage(err))
			return
		}
		v.emit(outboundMessage[any]{Type: "actionResult", Payload: resp})

	default:
		fail("unsupported message type")
	}
}
