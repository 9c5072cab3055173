// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package geometry parses session drawings and derives dimensions from
// them. Coordinates are millimeters; derived lengths are reported in
// meters and areas in square meters.
package geometry

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Point is a coordinate in millimeters. It unmarshals from the wire
// format [x, y] or [x, y, z]; Z stays zero for 2-D points.
type Point struct {
	X float64
	Y float64
	Z float64
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var coords []float64
	if err := json.Unmarshal(data, &coords); err != nil {
		return fmt.Errorf("point must be a [x, y] array: %w", err)
	}
	if len(coords) < 2 {
		return fmt.Errorf("point must have at least 2 coordinates, got %d", len(coords))
	}
	p.X = coords[0]
	p.Y = coords[1]
	if len(coords) > 2 {
		p.Z = coords[2]
	}
	return nil
}

func (p Point) MarshalJSON() ([]byte, error) {
	if p.Z != 0 {
		return json.Marshal([]float64{p.X, p.Y, p.Z})
	}
	return json.Marshal([]float64{p.X, p.Y})
}

// Entity is a single drawing element. Unknown JSON keys are ignored so
// the parser tolerates richer client payloads.
type Entity struct {
	Type   string  `json:"type,omitempty"`
	Layer  string  `json:"layer,omitempty"`
	Points []Point `json:"points,omitempty"`
	Closed bool    `json:"closed,omitempty"`

	// Height in meters, when the client annotates it explicitly.
	Height *float64 `json:"height,omitempty"`

	// Floors is the floor count, used for height estimation when no
	// explicit height is present.
	Floors *int `json:"floors,omitempty"`
}

// Drawing is the per-request, ephemeral set of drawing entities. It is
// never persisted server-side.
type Drawing struct {
	Entities []Entity

	// UpdatedAt is the client-reported last-modified timestamp (ISO 8601),
	// empty when unknown.
	UpdatedAt string

	raw json.RawMessage
}

// Parse accepts either a JSON array of entities or a single entity
// object. An empty or null payload yields an empty drawing.
func Parse(raw json.RawMessage) (*Drawing, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return &Drawing{}, nil
	}

	d := &Drawing{raw: raw}

	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &d.Entities); err != nil {
			return nil, fmt.Errorf("invalid drawing array: %w", err)
		}
		return d, nil
	}

	var single Entity
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("invalid drawing object: %w", err)
	}
	d.Entities = []Entity{single}
	return d, nil
}

// IsEmpty reports whether the drawing carries no entities.
func (d *Drawing) IsEmpty() bool {
	return d == nil || len(d.Entities) == 0
}

// Raw returns the original JSON payload, or a re-marshalled form when the
// drawing was built programmatically.
func (d *Drawing) Raw() json.RawMessage {
	if d == nil {
		return nil
	}
	if len(d.raw) > 0 {
		return d.raw
	}
	data, err := json.Marshal(d.Entities)
	if err != nil {
		return nil
	}
	return data
}

// EntitiesOnLayer returns entities whose layer matches name,
// case-insensitively.
func (d *Drawing) EntitiesOnLayer(name string) []Entity {
	if d == nil {
		return nil
	}
	var out []Entity
	for _, e := range d.Entities {
		if strings.EqualFold(e.Layer, name) {
			out = append(out, e)
		}
	}
	return out
}

// Layers returns the distinct layer names in first-seen order with their
// entity counts.
func (d *Drawing) Layers() ([]string, map[string]int) {
	if d == nil {
		return nil, nil
	}
	counts := make(map[string]int)
	var order []string
	for _, e := range d.Entities {
		layer := e.Layer
		if layer == "" {
			layer = "Unknown"
		}
		if _, seen := counts[layer]; !seen {
			order = append(order, layer)
		}
		counts[layer]++
	}
	return order, counts
}
