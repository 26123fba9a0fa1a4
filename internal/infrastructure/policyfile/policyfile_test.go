package policyfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"accountx/internal/domain"
)

const shippedPolicy = "configs/policy.yaml"

func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func fixturePath(t *testing.T, relPath string) string {
	t.Helper()
	root, err := projectRoot()
	if err != nil {
		t.Fatalf("locate project root failed: %v", err)
	}
	return filepath.Join(root, relPath)
}

func parseYAML(t *testing.T, relPath string) *yaml.Node {
	t.Helper()
	contents, err := os.ReadFile(fixturePath(t, relPath))
	if err != nil {
		t.Fatalf("read %s failed: %v", relPath, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(contents, &doc); err != nil {
		t.Fatalf("unmarshal %s failed: %v", relPath, err)
	}
	if len(doc.Content) == 0 {
		t.Fatalf("%s has empty yaml document", relPath)
	}
	return doc.Content[0]
}

func mappingValue(t *testing.T, node *yaml.Node, key string) *yaml.Node {
	t.Helper()
	if node == nil || node.Kind != yaml.MappingNode {
		t.Fatalf("expected mapping node while reading key %q", key)
	}
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	t.Fatalf("missing key %q", key)
	return nil
}

func sequenceHasScalar(node *yaml.Node, want string) bool {
	if node == nil || node.Kind != yaml.SequenceNode {
		return false
	}
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode && item.Value == want {
			return true
		}
	}
	return false
}

func TestShippedPolicyCoversEveryEntity(t *testing.T) {
	root := parseYAML(t, shippedPolicy)
	entities := mappingValue(t, root, "entities")

	for _, entity := range append([]domain.EntityType{domain.EntityCompany}, domain.ChildEntities...) {
		roles := mappingValue(t, entities, string(entity))
		admins := mappingValue(t, roles, string(domain.RoleAdmins))
		for _, action := range domain.AllActions {
			if !sequenceHasScalar(admins, string(action)) {
				t.Fatalf("%s: admins missing %s", entity, action)
			}
		}
		mappingValue(t, roles, string(domain.RoleAccountants))
	}
}

func TestShippedPolicyMatchesDefault(t *testing.T) {
	policy, err := Load(fixturePath(t, shippedPolicy))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPolicy(), policy)
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	policy, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPolicy(), policy)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecode_OverridesOnlyListedEntities(t *testing.T) {
	doc := `
entities:
  bookingtype:
    admins: [view, change, delete]
    accountants: [view, change]
`
	policy, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, []domain.Action{domain.ActionView, domain.ActionChange},
		policy.ActionsFor(domain.EntityBookingType, domain.RoleAccountants))
	assert.Equal(t, []domain.Action{domain.ActionView},
		policy.ActionsFor(domain.EntityCompany, domain.RoleAccountants))
	assert.Equal(t, "%s_%s", policy.GroupNameFormat)
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":         "colour: red\n",
		"unknown entity":      "entities:\n  invoice:\n    admins: [view, change, delete]\n",
		"unknown action":      "user_management: [approve]\n",
		"admins not full":     "entities:\n  sale:\n    admins: [view]\n",
		"unknown role":        "entities:\n  sale:\n    admins: [view, change, delete]\n    auditors: [view]\n",
		"indistinct groups":   "group_name_format: \"%[1]s\"\n",
		"bad parent action":   "parent_action: delete\n",
		"malformed structure": "entities: [sale]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
