package http

import (
	"context"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"wedding-quiz-service/internal/app"
	"wedding-quiz-service/internal/domain"
)

type transitionResponse struct {
	Session domain.Session        `json:"session"`
	Ranking []domain.RankingEntry `json:"ranking,omitempty"`
}

type registerRequest struct {
	Nickname string `json:"nickname"`
}

type registerResponse struct {
	GuestID  string `json:"guestId"`
	Nickname string `json:"nickname"`
}

type answerRequest struct {
	QuestionNumber int `json:"questionNumber"`
	Choice         int `json:"choice"`
}

type countResponse struct {
	Count int `json:"count"`
}

type rankingResponse struct {
	QuestionNumber int                   `json:"questionNumber,omitempty"`
	Entries        []domain.RankingEntry `json:"entries"`
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	session, err := a.service.CreateSession(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	session, err := a.service.Session(r.Context(), ps.ByName("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) transition(action app.Action) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		resp, err := a.applyAction(r.Context(), ps.ByName("id"), action)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// applyAction runs an operator action and attaches the final ranking once
// the session has finished. A failed ranking read leaves Ranking empty
// rather than failing a transition that was already written.
func (a *API) applyAction(ctx context.Context, sessionID string, action app.Action) (transitionResponse, error) {
	session, err := a.service.Apply(ctx, sessionID, action)
	if err != nil {
		return transitionResponse{}, err
	}
	a.logf("session %s: %s accepted", sessionID, action)
	resp := transitionResponse{Session: session}
	if session.Status == domain.StatusFinished {
		ranking, err := a.service.FinalRanking(ctx, sessionID, a.service.Settings().RankingDisplayCount)
		if err != nil {
			// The transition is already stored; the ranking stays readable from /rankings.
			log.Printf("session %s: final ranking unavailable: %v", sessionID, err)
		} else {
			resp.Ranking = ranking
		}
	}
	return resp, nil
}

func (a *API) registerGuest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	sessionID := ps.ByName("id")

	id := a.identity(w, r)
	guestID, err := id.GetOrCreateGuestID()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	guest, err := a.service.Register(r.Context(), sessionID, guestID, req.Nickname)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = id.SaveNickname(guest.Nickname)
	_ = id.SaveSessionID(sessionID)

	a.logf("session %s: guest %s registered as %q", sessionID, guest.GuestID, guest.Nickname)
	writeJSON(w, http.StatusOK, registerResponse{GuestID: guest.GuestID, Nickname: guest.Nickname})
}

func (a *API) guestCount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	n, err := a.service.GuestCount(r.Context(), ps.ByName("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (a *API) submitAnswer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	guestID, ok := a.identity(w, r).GuestID()
	if !ok {
		writeServiceError(w, domain.ErrGuestNotRegistered)
		return
	}
	answer, err := a.service.SubmitAnswer(r.Context(), ps.ByName("id"), guestID, req.QuestionNumber, req.Choice)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, answer)
}

// listAnswers returns the full records to the operator only. Everyone else
// gets the count and their own answered flag.
func (a *API) listAnswers(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	question, err := parseIntParam(r, "question", domain.AllQuestions)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	sessionID := ps.ByName("id")
	session, err := a.service.Session(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	answers, err := a.service.Answers(r.Context(), sessionID, question)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	guestID, _ := a.identity(w, r).GuestID()
	detailed := authorizeOperator(r, a.opts.OperatorToken)
	writeJSON(w, http.StatusOK, summarizeAnswers(session.LedgerID(), question, answers, detailed, guestID))
}

// rankings serves the per-question ranking when question is given and the
// final ranking otherwise. limit <= 0 returns every entry.
func (a *API) rankings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	question, err := parseIntParam(r, "question", domain.AllQuestions)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	limit, err := parseIntParam(r, "limit", a.service.Settings().RankingDisplayCount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var entries []domain.RankingEntry
	if question == domain.AllQuestions {
		entries, err = a.service.FinalRanking(r.Context(), ps.ByName("id"), limit)
	} else {
		entries, err = a.service.QuestionRanking(r.Context(), ps.ByName("id"), question, limit)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingResponse{QuestionNumber: question, Entries: entries})
}
