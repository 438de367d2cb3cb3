package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/they4kman/sweepd/director"
	"github.com/they4kman/sweepd/game"
	"github.com/they4kman/sweepd/service"
	"github.com/they4kman/sweepd/store"
)

var errMalformedBody = errors.New("malformed request body")

type handlers struct {
	svc *service.Service
	log logrus.FieldLogger
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrRejected),
		errors.Is(err, game.ErrInvalidDimensions),
		errors.Is(err, game.ErrInvalidMinePercentage),
		errors.Is(err, director.ErrUnknownDirector),
		errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoHint):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithField("path", r.URL.Path).WithError(err).Error("request failed")
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: message})
}

// decode reads a JSON body into into; allowEmpty leaves into untouched when
// there is no body at all
func decode(r *http.Request, into any, allowEmpty bool) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(into)
	switch {
	case err == io.EOF && allowEmpty:
		return nil
	case err != nil:
		return errors.Wrap(errMalformedBody, err.Error())
	}
	return nil
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	// an empty body asks for the default board
	var request service.NewGame
	if err := decode(r, &request, true); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.CreateGame(r.Context(), request)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/games/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	games, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *handlers) move(w http.ResponseWriter, r *http.Request) {
	var move game.Move
	if err := decode(r, &move, false); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.svc.Play(r.Context(), chi.URLParam(r, "id"), move)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *handlers) pause(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Pause(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *handlers) resume(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *handlers) hint(w http.ResponseWriter, r *http.Request) {
	move, err := h.svc.Hint(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("director"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, move)
}

type autoplayBody struct {
	Moves int             `json:"moves"`
	Game  game.PublicGame `json:"game"`
}

func (h *handlers) autoplay(w http.ResponseWriter, r *http.Request) {
	g, moves, err := h.svc.Autoplay(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("director"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, autoplayBody{Moves: moves, Game: g})
}
