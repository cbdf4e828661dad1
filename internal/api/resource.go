package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/events"
	"github.com/jogardn/laptop-store/internal/pagination"
	"github.com/jogardn/laptop-store/internal/store"
)

const apiPrefix = "/api/v1/"

// Repository is the storage contract of one entity: T is the record, I the
// create input, P the update patch and F the list filter.
type Repository[T, I, P, F any] interface {
	Create(ctx context.Context, in I) (T, error)
	List(ctx context.Context, filter F, p pagination.Paginator) (pagination.Page[T], error)
	Get(ctx context.Context, id int64) (T, error)
	Update(ctx context.Context, id int64, patch P) (T, error)
	Delete(ctx context.Context, id int64) (T, error)
	DeleteAll(ctx context.Context) error
}

// Uploader stores files sent with a request.
type Uploader interface {
	Save(fh *multipart.FileHeader) (string, error)
	Discard(publicPath string)
}

type patch[I any] interface {
	IsEmpty() bool
	Input() I
}

// resource serves the CRUD routes of one entity.
type resource[T any, I any, P patch[I], F any] struct {
	singular string
	plural   string
	label    string

	repo     Repository[T, I, P, F]
	idOf     func(T) int64
	filter   func(url.Values) F
	fromForm func(url.Values) (P, error)
	// attach stores files that belong to the patch and returns the public
	// path it saved, if any.
	attach func(r *http.Request, p *P) (string, error)

	uploads  Uploader
	notifier *Notifier
	logger   *logrus.Logger
	maxBytes int64
}

func (h *resource[T, I, P, F]) register(router *mux.Router) {
	base := apiPrefix + h.plural
	item := base + "/{id}"

	router.HandleFunc(base, h.list).Methods(http.MethodGet)
	router.HandleFunc(base, h.create).Methods(http.MethodPost)
	router.HandleFunc(base, h.deleteAll).Methods(http.MethodDelete)
	router.HandleFunc(item, h.get).Methods(http.MethodGet)
	router.HandleFunc(item, h.update).Methods(http.MethodPut)
	router.HandleFunc(item, h.delete).Methods(http.MethodDelete)
}

func (h *resource[T, I, P, F]) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.repo.List(r.Context(), h.filter(q), pagination.FromQuery(q))
	if err != nil {
		h.logger.WithError(err).Errorf("Failed to list %s", h.plural)
		respondWithError(w, http.StatusInternalServerError, "An error occurred while retrieving "+h.plural)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		h.plural:   page.Items,
		"metadata": page.Metadata,
	})
}

func (h *resource[T, I, P, F]) create(w http.ResponseWriter, r *http.Request) {
	p, saved, ok := h.bind(w, r, "Data to create can not be empty")
	if !ok {
		return
	}

	created, err := h.repo.Create(r.Context(), p.Input())
	if errors.Is(err, store.ErrInvalidInput) {
		h.discard(saved)
		h.logger.WithError(err).Warnf("Rejected %s", h.singular)
		respondWithError(w, http.StatusBadRequest, invalidMessage(err))
		return
	}
	if err != nil {
		h.discard(saved)
		h.logger.WithError(err).Errorf("Failed to create %s", h.singular)
		respondWithError(w, http.StatusInternalServerError, "An error occurred while creating the "+h.singular)
		return
	}

	id := h.idOf(created)
	h.logger.WithField(h.idField(), id).Infof("%s created", h.label)
	h.notifier.Notify(r.Context(), h.singular, events.ActionCreated, id, created)

	w.Header().Set("Location", fmt.Sprintf("%s%s/%d", apiPrefix, h.plural, id))
	respondSuccess(w, http.StatusCreated, map[string]interface{}{h.singular: created})
}

func (h *resource[T, I, P, F]) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	found, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, h.label+" not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField(h.idField(), id).Errorf("Failed to get %s", h.singular)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Error retrieving %s with id: %d", h.singular, id))
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{h.singular: found})
}

func (h *resource[T, I, P, F]) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	p, saved, ok := h.bind(w, r, "Data to update can not be empty")
	if !ok {
		return
	}

	updated, err := h.repo.Update(r.Context(), id, p)
	if errors.Is(err, store.ErrNotFound) {
		h.discard(saved)
		respondWithError(w, http.StatusNotFound, h.label+" not found")
		return
	}
	if errors.Is(err, store.ErrInvalidInput) {
		h.discard(saved)
		h.logger.WithError(err).WithField(h.idField(), id).Warnf("Rejected %s update", h.singular)
		respondWithError(w, http.StatusBadRequest, invalidMessage(err))
		return
	}
	if err != nil {
		h.discard(saved)
		h.logger.WithError(err).WithField(h.idField(), id).Errorf("Failed to update %s", h.singular)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Error updating %s with id: %d", h.singular, id))
		return
	}

	h.logger.WithField(h.idField(), id).Infof("%s updated", h.label)
	h.notifier.Notify(r.Context(), h.singular, events.ActionUpdated, id, updated)
	respondSuccess(w, http.StatusOK, map[string]interface{}{h.singular: updated})
}

func (h *resource[T, I, P, F]) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, h.label+" not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField(h.idField(), id).Errorf("Failed to delete %s", h.singular)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Error deleting %s with id: %d", h.singular, id))
		return
	}

	h.logger.WithField(h.idField(), id).Infof("%s deleted", h.label)
	h.notifier.Notify(r.Context(), h.singular, events.ActionDeleted, id, deleted)
	respondSuccess(w, http.StatusOK, nil)
}

func (h *resource[T, I, P, F]) deleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteAll(r.Context()); err != nil {
		h.logger.WithError(err).Errorf("Failed to delete all %s", h.plural)
		respondWithError(w, http.StatusInternalServerError, "An error occurred while removing all "+h.plural)
		return
	}

	h.logger.Infof("All %s deleted", h.plural)
	h.notifier.Notify(r.Context(), h.singular, events.ActionPurged, 0, nil)
	respondSuccess(w, http.StatusOK, nil)
}

// bind decodes the request body and stores any attached files. It writes the
// error response itself and reports ok=false when the request must stop.
func (h *resource[T, I, P, F]) bind(w http.ResponseWriter, r *http.Request, emptyMessage string) (P, string, bool) {
	p, err := bindPatch(r, h.maxBytes, h.fromForm)
	if err != nil {
		h.logger.WithError(err).Warnf("Rejected %s request body", h.singular)
		if errors.Is(err, errUploadFailed) {
			respondWithError(w, http.StatusBadRequest, "An error occurred while uploading the image")
		} else {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
		}
		return p, "", false
	}

	saved := ""
	if h.attach != nil {
		if saved, err = h.attach(r, &p); err != nil {
			h.logger.WithError(err).Error("Failed to store upload")
			respondWithError(w, http.StatusInternalServerError, "An unknown error occurred while uploading the image")
			return p, "", false
		}
	}

	if p.IsEmpty() {
		respondWithError(w, http.StatusBadRequest, emptyMessage)
		return p, "", false
	}
	return p, saved, true
}

// id parses the {id} path variable. Anything that is not an integer cannot
// name a row, so it is reported as not found.
func (h *resource[T, I, P, F]) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusNotFound, h.label+" not found")
		return 0, false
	}
	return id, true
}

func (h *resource[T, I, P, F]) discard(publicPath string) {
	if publicPath != "" && h.uploads != nil {
		h.uploads.Discard(publicPath)
	}
}

// invalidMessage turns "invalid input: reason" into "Invalid input: reason".
func invalidMessage(err error) string {
	msg := err.Error()
	i := strings.Index(msg, store.ErrInvalidInput.Error())
	if i < 0 {
		return "Invalid input"
	}
	msg = msg[i:]
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func (h *resource[T, I, P, F]) idField() string {
	return h.singular + "_id"
}
