package handler

import (
	"strings"
	"time"

	id "deathnote/pkg/domain"
	dErrors "deathnote/pkg/domain-errors"
)

// InitializeNoteRequest is the HTTP request body for POST /notes.
type InitializeNoteRequest struct {
	ShinigamiID string  `json:"shinigami_id"`
	OwnerID     *string `json:"owner_id,omitempty"`

	parsedShinigamiID id.ShinigamiID
	parsedOwnerID     *id.OwnerID
}

func (r *InitializeNoteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	shinigamiID, err := id.ParseShinigamiID(strings.TrimSpace(r.ShinigamiID))
	if err != nil {
		return err
	}
	r.parsedShinigamiID = shinigamiID
	if r.OwnerID != nil {
		ownerID, err := id.ParseOwnerID(strings.TrimSpace(*r.OwnerID))
		if err != nil {
			return err
		}
		r.parsedOwnerID = &ownerID
	}
	return nil
}

func (r *InitializeNoteRequest) ParsedShinigamiID() id.ShinigamiID { return r.parsedShinigamiID }
func (r *InitializeNoteRequest) ParsedOwnerID() *id.OwnerID        { return r.parsedOwnerID }

// RegisterPersonRequest is the HTTP request body for POST /notes/{noteID}/persons.
type RegisterPersonRequest struct {
	Name      string `json:"name"`
	FacePhoto string `json:"face_photo,omitempty"`
}

func (r *RegisterPersonRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// SpecifyDeathRequest is the HTTP request body for PUT /persons/{personID}/death.
type SpecifyDeathRequest struct {
	TargetDeathTime time.Time `json:"target_death_time"`
	Details         string    `json:"details,omitempty"`
	Cause           string    `json:"cause,omitempty"`
}

func (r *SpecifyDeathRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.TargetDeathTime.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "target_death_time is required")
	}
	return nil
}

// ClaimOwnershipRequest is the HTTP request body for POST /notes/{noteID}/claim.
type ClaimOwnershipRequest struct {
	OwnerID string `json:"owner_id"`

	parsedOwnerID id.OwnerID
}

func (r *ClaimOwnershipRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	ownerID, err := id.ParseOwnerID(strings.TrimSpace(r.OwnerID))
	if err != nil {
		return err
	}
	r.parsedOwnerID = ownerID
	return nil
}

func (r *ClaimOwnershipRequest) ParsedOwnerID() id.OwnerID { return r.parsedOwnerID }

// CreateOwnerRequest is the HTTP request body for POST /owners.
type CreateOwnerRequest struct {
	Name string `json:"name"`
}

func (r *CreateOwnerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}
