// Package handler exposes the registry over HTTP. Handlers decode and
// validate requests, delegate to the service, and map results and coded
// errors onto the wire.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"deathnote/internal/registry/models"
	id "deathnote/pkg/domain"
	"deathnote/pkg/platform/httputil"
	"deathnote/pkg/requestcontext"
)

// Service defines the registry operations the handler exposes.
type Service interface {
	Register(ctx context.Context, name, facePhoto string, noteID id.NoteID) (*models.Person, error)
	BeginDetailSpecification(ctx context.Context, personID id.PersonID) (*models.Person, error)
	SpecifyDeath(ctx context.Context, personID id.PersonID, target time.Time, details, cause string) (*models.Person, error)
	GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	ListPersons(ctx context.Context) ([]*models.Person, error)
	DeletePerson(ctx context.Context, personID id.PersonID) error

	InitializeNote(ctx context.Context, shinigamiID id.ShinigamiID, ownerID *id.OwnerID) (*models.DeathNote, error)
	WritePerson(ctx context.Context, noteID id.NoteID, personID id.PersonID) (*models.DeathNote, error)
	ClaimOwnership(ctx context.Context, noteID id.NoteID, ownerID id.OwnerID) (*models.DeathNote, error)
	RejectOwnership(ctx context.Context, noteID id.NoteID) (*models.DeathNote, error)
	GetNote(ctx context.Context, noteID id.NoteID) (*models.DeathNote, error)
	ListNotes(ctx context.Context) ([]*models.DeathNote, error)

	CreateOwner(ctx context.Context, name string) (*models.Owner, error)
	GetOwner(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error)
	TradeEyes(ctx context.Context, ownerID id.OwnerID) (*models.Owner, error)
}

// Handler wires registry endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/notes", func(r chi.Router) {
		r.Post("/", h.HandleInitializeNote)
		r.Get("/", h.HandleListNotes)
		r.Get("/{noteID}", h.HandleGetNote)
		r.Post("/{noteID}/persons", h.HandleRegisterPerson)
		r.Post("/{noteID}/persons/{personID}", h.HandleWritePerson)
		r.Post("/{noteID}/claim", h.HandleClaimOwnership)
		r.Post("/{noteID}/reject", h.HandleRejectOwnership)
	})
	r.Route("/persons", func(r chi.Router) {
		r.Get("/", h.HandleListPersons)
		r.Get("/{personID}", h.HandleGetPerson)
		r.Delete("/{personID}", h.HandleDeletePerson)
		r.Post("/{personID}/details", h.HandleBeginDetails)
		r.Put("/{personID}/death", h.HandleSpecifyDeath)
	})
	r.Route("/owners", func(r chi.Router) {
		r.Post("/", h.HandleCreateOwner)
		r.Get("/{ownerID}", h.HandleGetOwner)
		r.Post("/{ownerID}/eyes", h.HandleTradeEyes)
	})
}

// HandleInitializeNote handles POST /notes.
func (h *Handler) HandleInitializeNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[InitializeNoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	n, err := h.service.InitializeNote(ctx, req.ParsedShinigamiID(), req.ParsedOwnerID())
	if err != nil {
		h.logger.WarnContext(ctx, "note initialization failed",
			"request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromNote(n))
}

// HandleListNotes handles GET /notes.
func (h *Handler) HandleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListNotes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromNotes(notes))
}

// HandleGetNote handles GET /notes/{noteID}.
func (h *Handler) HandleGetNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.GetNote(r.Context(), noteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromNote(n))
}

// HandleRegisterPerson handles POST /notes/{noteID}/persons.
func (h *Handler) HandleRegisterPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterPersonRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.Register(ctx, req.Name, req.FacePhoto, noteID)
	if err != nil {
		h.logger.WarnContext(ctx, "person registration failed",
			"request_id", requestID, "note_id", noteID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromPerson(p))
}

// HandleWritePerson handles POST /notes/{noteID}/persons/{personID}.
func (h *Handler) HandleWritePerson(w http.ResponseWriter, r *http.Request) {
	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.WritePerson(r.Context(), noteID, personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromNote(n))
}

// HandleClaimOwnership handles POST /notes/{noteID}/claim.
func (h *Handler) HandleClaimOwnership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ClaimOwnershipRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	n, err := h.service.ClaimOwnership(ctx, noteID, req.ParsedOwnerID())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromNote(n))
}

// HandleRejectOwnership handles POST /notes/{noteID}/reject.
func (h *Handler) HandleRejectOwnership(w http.ResponseWriter, r *http.Request) {
	noteID, err := id.ParseNoteID(chi.URLParam(r, "noteID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.service.RejectOwnership(r.Context(), noteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromNote(n))
}

// HandleListPersons handles GET /persons.
func (h *Handler) HandleListPersons(w http.ResponseWriter, r *http.Request) {
	people, err := h.service.ListPersons(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPersons(people))
}

// HandleGetPerson handles GET /persons/{personID}.
func (h *Handler) HandleGetPerson(w http.ResponseWriter, r *http.Request) {
	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetPerson(r.Context(), personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPerson(p))
}

// HandleDeletePerson handles DELETE /persons/{personID}.
func (h *Handler) HandleDeletePerson(w http.ResponseWriter, r *http.Request) {
	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeletePerson(r.Context(), personID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBeginDetails handles POST /persons/{personID}/details.
func (h *Handler) HandleBeginDetails(w http.ResponseWriter, r *http.Request) {
	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.BeginDetailSpecification(r.Context(), personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPerson(p))
}

// HandleSpecifyDeath handles PUT /persons/{personID}/death.
func (h *Handler) HandleSpecifyDeath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	personID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SpecifyDeathRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.SpecifyDeath(ctx, personID, req.TargetDeathTime, req.Details, req.Cause)
	if err != nil {
		h.logger.WarnContext(ctx, "death specification failed",
			"request_id", requestID, "person_id", personID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPerson(p))
}

// HandleCreateOwner handles POST /owners.
func (h *Handler) HandleCreateOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateOwnerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	o, err := h.service.CreateOwner(ctx, req.Name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromOwner(o))
}

// HandleGetOwner handles GET /owners/{ownerID}.
func (h *Handler) HandleGetOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := id.ParseOwnerID(chi.URLParam(r, "ownerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	o, err := h.service.GetOwner(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOwner(o))
}

// HandleTradeEyes handles POST /owners/{ownerID}/eyes.
func (h *Handler) HandleTradeEyes(w http.ResponseWriter, r *http.Request) {
	ownerID, err := id.ParseOwnerID(chi.URLParam(r, "ownerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	o, err := h.service.TradeEyes(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOwner(o))
}
