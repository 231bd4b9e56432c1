package http

import (
	"log"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"wedding-quiz-service/internal/app"
	"wedding-quiz-service/internal/identity"
)

// Options configure the HTTP surface.
type Options struct {
	BasePath      string
	OperatorToken string
	Verbose       bool
}

// API exposes the quiz use cases over JSON and websockets.
type API struct {
	service *app.QuizService
	ws      *WSHandler
	opts    Options
}

func NewAPI(service *app.QuizService, opts Options) *API {
	opts.BasePath = strings.TrimSuffix(opts.BasePath, "/")
	api := &API{service: service, opts: opts}
	api.ws = NewWSHandler(service, api)
	return api
}

// Router registers every route under the base path.
func (a *API) Router() *httprouter.Router {
	mux := httprouter.New()
	p := a.opts.BasePath

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, v)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
	mux.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})

	mux.GET(p+"/healthz", a.healthz)

	mux.POST(p+"/sessions", a.operator(a.createSession))
	mux.GET(p+"/sessions/:id", a.getSession)
	mux.POST(p+"/sessions/:id/start", a.operator(a.transition(app.ActionStart)))
	mux.POST(p+"/sessions/:id/advance", a.operator(a.transition(app.ActionAdvance)))
	mux.POST(p+"/sessions/:id/back", a.operator(a.transition(app.ActionBack)))
	mux.POST(p+"/sessions/:id/reset", a.operator(a.transition(app.ActionReset)))

	mux.POST(p+"/sessions/:id/guests", a.registerGuest)
	mux.GET(p+"/sessions/:id/guests/count", a.guestCount)
	mux.POST(p+"/sessions/:id/answers", a.submitAnswer)
	mux.GET(p+"/sessions/:id/answers", a.listAnswers)
	mux.GET(p+"/sessions/:id/rankings", a.rankings)
	mux.GET(p+"/sessions/:id/ws", a.ws.ServeWS)

	return mux
}

func (a *API) operator(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !authorizeOperator(r, a.opts.OperatorToken) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "operator token required"})
			return
		}
		next(w, r, ps)
	}
}

// identity returns the guest identity carried by the request's cookies.
func (a *API) identity(w http.ResponseWriter, r *http.Request) *identity.Manager {
	path := a.opts.BasePath
	if path == "" {
		path = "/"
	}
	return identity.NewManager(identity.NewCookieStorage(w, r, path))
}

func (a *API) logf(format string, args ...any) {
	if !a.opts.Verbose {
		return
	}
	log.Printf(format, args...)
}
