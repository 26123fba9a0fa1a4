package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("delete_bookingtype")
	require.NoError(t, err)
	assert.Equal(t, Perm(ActionDelete, EntityBookingType), p)
	assert.Equal(t, "delete_bookingtype", p.String())

	for _, raw := range []string{"", "view", "view_", "_company", "approve_company", "view_invoice", "view-company"} {
		_, err := ParsePermission(raw)
		assert.ErrorIs(t, err, ErrInvalidInput, raw)
	}
}

func TestPermission_TextRoundTripInJSON(t *testing.T) {
	g := Grant{Permission: Perm(ActionChange, EntityGroup), Subject: GroupSubject("g1"), ObjectID: "g2"}
	raw, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"permission":"change_group","subject":{"type":"group","id":"g1"},"object_id":"g2"}`, string(raw))

	var bad Grant
	assert.Error(t, json.Unmarshal([]byte(`{"permission":"own_group"}`), &bad))
}

func TestGrant_Validate(t *testing.T) {
	valid := Grant{Permission: Perm(ActionView, EntitySale), Subject: UserSubject("u1"), ObjectID: "s1"}
	require.NoError(t, valid.Validate())

	noObject := valid
	noObject.ObjectID = ""
	assert.ErrorIs(t, noObject.Validate(), ErrInvalidInput)

	badSubject := valid
	badSubject.Subject = Subject{Type: "robot", ID: "r1"}
	assert.ErrorIs(t, badSubject.Validate(), ErrInvalidInput)
}
