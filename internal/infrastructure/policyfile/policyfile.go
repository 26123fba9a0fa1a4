package policyfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"accountx/internal/domain"
)

type document struct {
	GroupNameFormat string                                                `yaml:"group_name_format"`
	ParentAction    domain.Action                                         `yaml:"parent_action"`
	GroupManagement []domain.Action                                       `yaml:"group_management"`
	UserManagement  []domain.Action                                       `yaml:"user_management"`
	Entities        map[domain.EntityType]map[domain.Role][]domain.Action `yaml:"entities"`
}

// Load reads a policy file. An empty path yields the built-in default policy.
func Load(path string) (domain.Policy, error) {
	if path == "" {
		return domain.DefaultPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	policy, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return domain.Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	return policy, nil
}

// Decode parses a policy document. Keys left out keep their default values;
// an entity listed in the document replaces the default rows for that entity.
func Decode(r io.Reader) (domain.Policy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return domain.Policy{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	policy := domain.DefaultPolicy()
	if doc.GroupNameFormat != "" {
		policy.GroupNameFormat = doc.GroupNameFormat
	}
	if doc.ParentAction != "" {
		policy.ParentAction = doc.ParentAction
	}
	if doc.GroupManagement != nil {
		policy.GroupManagement = doc.GroupManagement
	}
	if doc.UserManagement != nil {
		policy.UserManagement = doc.UserManagement
	}
	for entity, roles := range doc.Entities {
		if !entity.Valid() {
			return domain.Policy{}, fmt.Errorf("%w: unknown entity %q", domain.ErrInvalidInput, entity)
		}
		policy.Entities[entity] = roles
	}
	if err := policy.Validate(); err != nil {
		return domain.Policy{}, err
	}
	return policy, nil
}
