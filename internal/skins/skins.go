// Package skins is the registry of character skins.
package skins

import (
	"sort"
	"strings"
)

const (
	Frog     = "frog"
	Mandarin = "mandarin"
)

// Skin is one character appearance. Normal and Shaken are the frames drawn
// at rest and while the shake animation runs.
type Skin struct {
	ID        string
	Premium   bool
	VariantID string
	Normal    []string
	Shaken    []string
}

// Frame returns the frame for the animation state.
func (s Skin) Frame(shaking bool) []string {
	if shaking && len(s.Shaken) > 0 {
		return s.Shaken
	}
	return s.Normal
}

var builtin = []Skin{
	{
		ID: Frog,
		Normal: []string{
			`    @..@    `,
			`   (----)   `,
			`  ( >__< )  `,
			`  ^^ ~~ ^^  `,
		},
		Shaken: []string{
			`  \ @..@ /  `,
			`   (-OO-)   `,
			` ~( >__< )~ `,
			`  ^^ ~~ ^^  `,
		},
	},
	{
		ID:      Mandarin,
		Premium: true,
		Normal: []string{
			`     \|/     `,
			`   .-'''-.   `,
			`  /  o o  \  `,
			`  \   -   /  `,
			`   '-...-'   `,
		},
		Shaken: []string{
			`   ~ \|/ ~   `,
			`   .-'''-.   `,
			` ~/  O O  \~ `,
			`  \   o   /  `,
			`   '-...-'   `,
		},
	},
}

// Registry resolves skin ids. It is immutable once built.
type Registry struct {
	def   string
	skins map[string]Skin
	order []string
}

// NewRegistry builds the registry from the built-in skins. variants binds
// premium skins to payment variant ids; an empty or unknown defaultID falls
// back to the frog.
func NewRegistry(defaultID string, variants map[string]string) *Registry {
	r := &Registry{skins: make(map[string]Skin, len(builtin))}
	for _, s := range builtin {
		if v := strings.TrimSpace(variants[s.ID]); v != "" {
			s.VariantID = v
		}
		r.skins[s.ID] = s
		r.order = append(r.order, s.ID)
	}
	sort.Strings(r.order)
	defaultID = normalize(defaultID)
	if _, ok := r.skins[defaultID]; !ok {
		defaultID = Frog
	}
	r.def = defaultID
	return r
}

func normalize(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

// Lookup returns the skin with the exact id.
func (r *Registry) Lookup(id string) (Skin, bool) {
	s, ok := r.skins[normalize(id)]
	return s, ok
}

// Resolve returns the skin for id, or the default skin for unknown ids.
func (r *Registry) Resolve(id string) Skin {
	if s, ok := r.Lookup(id); ok {
		return s
	}
	return r.skins[r.def]
}

func (r *Registry) Default() Skin { return r.skins[r.def] }

// IDs lists skin ids in stable order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Premium lists premium skins in stable order.
func (r *Registry) Premium() []Skin {
	var out []Skin
	for _, id := range r.order {
		if s := r.skins[id]; s.Premium {
			out = append(out, s)
		}
	}
	return out
}

// Next returns the skin after id in stable order, wrapping around.
func (r *Registry) Next(id string) Skin {
	id = normalize(id)
	for i, cur := range r.order {
		if cur == id {
			return r.skins[r.order[(i+1)%len(r.order)]]
		}
	}
	return r.Default()
}
