package domain

import (
	"fmt"
	"slices"
)

type Role string

const (
	RoleAdmins      Role = "admins"
	RoleAccountants Role = "accountants"
)

var Roles = []Role{RoleAdmins, RoleAccountants}

// Policy is the provisioning table: which actions each company role receives on a
// freshly created object of a given entity type.
type Policy struct {
	Entities map[EntityType]map[Role][]Action
	// GroupManagement is granted to the admins group on both company groups.
	GroupManagement []Action
	// ParentAction is what an actor needs on the parent company to create or
	// update a child record.
	ParentAction Action
	// UserManagement is granted on a user to every group that may change a group
	// the user joins.
	UserManagement []Action
	// GroupNameFormat takes the company name and the role.
	GroupNameFormat string
}

func DefaultPolicy() Policy {
	full := []Action{ActionView, ActionChange, ActionDelete}
	return Policy{
		Entities: map[EntityType]map[Role][]Action{
			EntityCompany:     {RoleAdmins: full, RoleAccountants: {ActionView}},
			EntitySale:        {RoleAdmins: full, RoleAccountants: full},
			EntityPurchase:    {RoleAdmins: full, RoleAccountants: full},
			EntityBooking:     {RoleAdmins: full, RoleAccountants: full},
			EntityMedia:       {RoleAdmins: full, RoleAccountants: full},
			EntityBookingType: {RoleAdmins: full, RoleAccountants: {ActionView}},
		},
		GroupManagement: []Action{ActionChange, ActionDelete},
		ParentAction:    ActionView,
		UserManagement:  full,
		GroupNameFormat: "%s_%s",
	}
}

// ActionsFor returns the actions role receives on a new object of entity.
func (p Policy) ActionsFor(entity EntityType, role Role) []Action {
	return p.Entities[entity][role]
}

func (p Policy) GroupName(company string, role Role) string {
	return fmt.Sprintf(p.GroupNameFormat, company, role)
}

func (p Policy) Validate() error {
	for _, entity := range append([]EntityType{EntityCompany}, ChildEntities...) {
		roles, ok := p.Entities[entity]
		if !ok {
			return fmt.Errorf("%w: policy has no entry for %s", ErrInvalidInput, entity)
		}
		admins := roles[RoleAdmins]
		for _, a := range AllActions {
			if !slices.Contains(admins, a) {
				return fmt.Errorf("%w: admins must hold %s on %s", ErrInvalidInput, a, entity)
			}
		}
		for role, actions := range roles {
			if role != RoleAdmins && role != RoleAccountants {
				return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
			}
			if err := validActions(actions); err != nil {
				return err
			}
		}
	}
	if err := validActions(p.GroupManagement); err != nil {
		return err
	}
	if err := validActions(p.UserManagement); err != nil {
		return err
	}
	if p.ParentAction != ActionView && p.ParentAction != ActionChange {
		return fmt.Errorf("%w: parent action must be view or change", ErrInvalidInput)
	}
	if p.GroupNameFormat == "" || p.GroupName("a", RoleAdmins) == p.GroupName("a", RoleAccountants) {
		return fmt.Errorf("%w: group name format must distinguish roles", ErrInvalidInput)
	}
	return nil
}

func validActions(actions []Action) error {
	for _, a := range actions {
		if !a.Valid() {
			return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, a)
		}
	}
	return nil
}
