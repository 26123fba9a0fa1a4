package domain

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionView   Action = "view"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
)

var AllActions = []Action{ActionView, ActionChange, ActionDelete}

func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionChange, ActionDelete:
		return true
	}
	return false
}

type EntityType string

const (
	EntityCompany     EntityType = "company"
	EntitySale        EntityType = "sale"
	EntityPurchase    EntityType = "purchase"
	EntityBooking     EntityType = "booking"
	EntityBookingType EntityType = "bookingtype"
	EntityMedia       EntityType = "media"
	EntityGroup       EntityType = "group"
	EntityUser        EntityType = "user"
)

// ChildEntities are the record types owned by a company.
var ChildEntities = []EntityType{EntitySale, EntityPurchase, EntityBooking, EntityBookingType, EntityMedia}

func (e EntityType) Valid() bool {
	switch e {
	case EntityCompany, EntitySale, EntityPurchase, EntityBooking, EntityBookingType, EntityMedia, EntityGroup, EntityUser:
		return true
	}
	return false
}

// Permission is a capability scoped to one entity type, written as "<action>_<entity>",
// e.g. "view_company" or "delete_media".
type Permission struct {
	Action Action
	Entity EntityType
}

func Perm(action Action, entity EntityType) Permission {
	return Permission{Action: action, Entity: entity}
}

func ParsePermission(raw string) (Permission, error) {
	action, entity, ok := strings.Cut(strings.TrimSpace(raw), "_")
	p := Permission{Action: Action(action), Entity: EntityType(entity)}
	if !ok || !p.Action.Valid() || !p.Entity.Valid() {
		return Permission{}, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, raw)
	}
	return p, nil
}

func (p Permission) String() string {
	return string(p.Action) + "_" + string(p.Entity)
}

func (p Permission) Valid() bool {
	return p.Action.Valid() && p.Entity.Valid()
}

func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type SubjectType string

const (
	SubjectUser  SubjectType = "user"
	SubjectGroup SubjectType = "group"
)

// Subject is whoever can hold a grant: a user directly or a group.
type Subject struct {
	Type SubjectType `json:"type"`
	ID   string      `json:"id"`
}

func UserSubject(id string) Subject  { return Subject{Type: SubjectUser, ID: id} }
func GroupSubject(id string) Subject { return Subject{Type: SubjectGroup, ID: id} }

func (s Subject) String() string { return string(s.Type) + ":" + s.ID }

func (s Subject) Valid() bool {
	return (s.Type == SubjectUser || s.Type == SubjectGroup) && s.ID != ""
}

type Grant struct {
	Permission Permission `json:"permission"`
	Subject    Subject    `json:"subject"`
	ObjectID   string     `json:"object_id"`
}

func (g Grant) Validate() error {
	if !g.Permission.Valid() || !g.Subject.Valid() || g.ObjectID == "" {
		return ErrInvalidInput
	}
	return nil
}

type MatchMode string

const (
	MatchAny MatchMode = "any"
	MatchAll MatchMode = "all"
)
