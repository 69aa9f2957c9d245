package models

import (
	"encoding/json"
	"fmt"
)

// Component is one typed payload attached to an entity. Concrete kinds are
// registered by name so heterogeneous lists survive serialization: every
// component is written with an explicit "kind" tag and decoded through the
// registry rather than by reflection.
type Component interface {
	Kind() string
	Validate() error
	Clone() Component
}

// ComponentList is a heterogeneous component collection with kind-tagged
// JSON encoding.
type ComponentList []Component

const kindField = "kind"

// MarshalJSON writes each component as its own object with the kind tag merged in.
func (l ComponentList) MarshalJSON() ([]byte, error) {
	out := make([]map[string]any, len(l))
	for i, c := range l {
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", c.Kind(), err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("component %q does not encode to an object: %w", c.Kind(), err)
		}
		m[kindField] = c.Kind()
		out[i] = m
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes each element through the default registry, dispatching
// on the kind tag. An unknown kind is a decode error rather than a silent drop.
func (l *ComponentList) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}
	out := make(ComponentList, 0, len(elems))
	for i, raw := range elems {
		var tag struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			return fmt.Errorf("component %d: %w", i, err)
		}
		c, err := DefaultRegistry.New(tag.Kind)
		if err != nil {
			return fmt.Errorf("component %d: %w", i, err)
		}
		if err := json.Unmarshal(raw, c); err != nil {
			return fmt.Errorf("component %d (%s): %w", i, tag.Kind, err)
		}
		out = append(out, c)
	}
	*l = out
	return nil
}

// Sprite renders the entity with a texture.
type Sprite struct {
	Texture string `json:"texture"`
	Layer   int    `json:"layer,omitempty"`
	Tint    string `json:"tint,omitempty"`
}

func (s *Sprite) Kind() string { return "sprite" }

func (s *Sprite) Validate() error {
	if s.Texture == "" {
		return fmt.Errorf("sprite texture must not be empty")
	}
	return nil
}

func (s *Sprite) Clone() Component {
	c := *s
	return &c
}

// Physics gives the entity a body in the simulation.
type Physics struct {
	Mass      float64    `json:"mass"`
	Velocity  [3]float64 `json:"velocity"`
	Kinematic bool       `json:"kinematic,omitempty"`
}

func (p *Physics) Kind() string { return "physics" }

func (p *Physics) Validate() error {
	if p.Mass < 0 {
		return fmt.Errorf("physics mass must not be negative")
	}
	return nil
}

func (p *Physics) Clone() Component {
	c := *p
	return &c
}

// Script attaches scripted behavior by source reference.
type Script struct {
	Source string `json:"source"`
	Entry  string `json:"entry,omitempty"`
}

func (s *Script) Kind() string { return "script" }

func (s *Script) Validate() error {
	if s.Source == "" {
		return fmt.Errorf("script source must not be empty")
	}
	return nil
}

func (s *Script) Clone() Component {
	c := *s
	return &c
}

// Health tracks damageable state.
type Health struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

func (h *Health) Kind() string { return "health" }

func (h *Health) Validate() error {
	if h.Max < 0 || h.Current < 0 {
		return fmt.Errorf("health values must not be negative")
	}
	if h.Current > h.Max {
		return fmt.Errorf("health current %d exceeds max %d", h.Current, h.Max)
	}
	return nil
}

func (h *Health) Clone() Component {
	c := *h
	return &c
}
