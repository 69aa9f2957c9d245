// Package models defines the concrete entity record persisted by the store,
// including its heterogeneous, kind-tagged component list.
package models

import "fmt"

// Entity is a structured game-world record. An entity with an empty TemplateID
// is a root template; otherwise it is a variant of the referenced entity and
// is persisted as a diff against it.
type Entity struct {
	ID         string        `json:"id"`
	TemplateID string        `json:"templateId,omitempty"`
	Name       string        `json:"name,omitempty"`
	Transform  *Transform    `json:"transform,omitempty"`
	Children   []string      `json:"children,omitempty"`
	Tags       []string      `json:"tags,omitempty"`
	Components ComponentList `json:"components,omitempty"`
}

// Transform is the entity pose.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation,omitempty"`
	Scale    float64 `json:"scale,omitempty"`
}

// EntityID returns the entity identifier.
func (e *Entity) EntityID() string { return e.ID }

// TemplateRef returns the parent template id, empty for roots.
func (e *Entity) TemplateRef() string { return e.TemplateID }

// Validate checks the record's internal consistency.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entity id must not be empty")
	}
	if e.TemplateID == e.ID {
		return fmt.Errorf("entity %q references itself as template", e.ID)
	}
	for _, c := range e.Components {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("entity %q component %q: %w", e.ID, c.Kind(), err)
		}
	}
	return nil
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	out := *e
	if e.Transform != nil {
		t := *e.Transform
		out.Transform = &t
	}
	out.Children = append([]string(nil), e.Children...)
	out.Tags = append([]string(nil), e.Tags...)
	if e.Components != nil {
		out.Components = make(ComponentList, len(e.Components))
		for i, c := range e.Components {
			out.Components[i] = c.Clone()
		}
	}
	return &out
}
