package handler

import (
	"time"

	"deathnote/internal/registry/models"
)

// PersonResponse is the HTTP shape of a person record.
type PersonResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Alive              bool       `json:"alive"`
	Status             string     `json:"status"`
	EntryTime          time.Time  `json:"entry_time"`
	ScheduledDeathTime *time.Time `json:"scheduled_death_time,omitempty"`
	DeathDate          *time.Time `json:"death_date,omitempty"`
	DeathDetails       string     `json:"death_details,omitempty"`
	CauseOfDeath       string     `json:"cause_of_death,omitempty"`
	FacePhoto          string     `json:"face_photo,omitempty"`
	NoteID             string     `json:"note_id"`
}

func FromPerson(p *models.Person) *PersonResponse {
	return &PersonResponse{
		ID:                 p.ID.String(),
		Name:               p.Name,
		Alive:              p.Alive,
		Status:             string(p.Status),
		EntryTime:          p.EntryTime,
		ScheduledDeathTime: p.ScheduledDeathTime,
		DeathDate:          p.DeathDate,
		DeathDetails:       p.DeathDetails,
		CauseOfDeath:       p.CauseOfDeath,
		FacePhoto:          p.FacePhoto,
		NoteID:             p.NoteID.String(),
	}
}

func FromPersons(people []*models.Person) []*PersonResponse {
	out := make([]*PersonResponse, 0, len(people))
	for _, p := range people {
		out = append(out, FromPerson(p))
	}
	return out
}

// NoteResponse is the HTTP shape of a death note.
type NoteResponse struct {
	ID          string   `json:"id"`
	ShinigamiID string   `json:"shinigami_id"`
	OwnerID     *string  `json:"owner_id,omitempty"`
	PersonIDs   []string `json:"person_ids"`
}

func FromNote(n *models.DeathNote) *NoteResponse {
	resp := &NoteResponse{
		ID:          n.ID.String(),
		ShinigamiID: n.ShinigamiID.String(),
		PersonIDs:   make([]string, 0, len(n.PersonIDs)),
	}
	if n.OwnerID != nil {
		oid := n.OwnerID.String()
		resp.OwnerID = &oid
	}
	for _, pid := range n.PersonIDs {
		resp.PersonIDs = append(resp.PersonIDs, pid.String())
	}
	return resp
}

func FromNotes(notes []*models.DeathNote) []*NoteResponse {
	out := make([]*NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, FromNote(n))
	}
	return out
}

// OwnerResponse is the HTTP shape of an owner record.
type OwnerResponse struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	HasShinigamiEyes      bool       `json:"has_shinigami_eyes"`
	ShinigamiEyesDealDate *time.Time `json:"shinigami_eyes_deal_date,omitempty"`
	NoteID                *string    `json:"note_id,omitempty"`
}

func FromOwner(o *models.Owner) *OwnerResponse {
	resp := &OwnerResponse{
		ID:                    o.ID.String(),
		Name:                  o.Name,
		HasShinigamiEyes:      o.HasShinigamiEyes,
		ShinigamiEyesDealDate: o.ShinigamiEyesDealDate,
	}
	if o.NoteID != nil {
		nid := o.NoteID.String()
		resp.NoteID = &nid
	}
	return resp
}
