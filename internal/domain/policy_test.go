package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())

	assert.Equal(t, AllActions, p.ActionsFor(EntitySale, RoleAccountants))
	assert.Equal(t, []Action{ActionView}, p.ActionsFor(EntityCompany, RoleAccountants))
	assert.Equal(t, "Acme_admins", p.GroupName("Acme", RoleAdmins))
	assert.Equal(t, "Acme_accountants", p.GroupName("Acme", RoleAccountants))
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"missing entity", func(p *Policy) { delete(p.Entities, EntityMedia) }},
		{"admins lack delete", func(p *Policy) { p.Entities[EntitySale][RoleAdmins] = []Action{ActionView, ActionChange} }},
		{"unknown role", func(p *Policy) { p.Entities[EntitySale]["auditors"] = []Action{ActionView} }},
		{"unknown action", func(p *Policy) { p.GroupManagement = []Action{"own"} }},
		{"parent action delete", func(p *Policy) { p.ParentAction = ActionDelete }},
		{"empty group format", func(p *Policy) { p.GroupNameFormat = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidInput)
		})
	}
}
