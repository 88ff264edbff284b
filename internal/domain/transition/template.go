package transition

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/molkinetics/tsfinder/internal/domain/molgraph"
	"github.com/molkinetics/tsfinder/internal/domain/rearrange"
	"github.com/molkinetics/tsfinder/internal/domain/species"
	"github.com/molkinetics/tsfinder/pkg/errors"
)

// ActiveDistance records the saddle-point separation of one active bond,
// keyed by element labels so templates transfer between index-incompatible
// systems with the same reactive centre.
type ActiveDistance struct {
	LabelA   string  `json:"label_a"`
	LabelB   string  `json:"label_b"`
	Forming  bool    `json:"forming"`
	Distance float64 `json:"distance"` // Å
}

// Template is the reusable geometric essence of a found transition state:
// the active-bond distances at the saddle point for a given rearrangement
// signature.  Reusing one replaces a full scan with a single constrained
// optimisation.
type Template struct {
	ID        string           `json:"id"`
	Signature string           `json:"signature"`
	Charge    int              `json:"charge"`
	Mult      int              `json:"mult"`
	Distances []ActiveDistance `json:"distances"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewTemplate extracts a template from a validated transition state.
func NewTemplate(ts *TransitionState) *Template {
	t := &Template{
		ID:        uuid.NewString(),
		Signature: ts.Rearrangement.Signature(),
		Charge:    ts.Species.Charge,
		Mult:      ts.Species.Mult,
		CreatedAt: time.Now().UTC(),
	}
	add := func(b molgraph.Bond, forming bool) {
		t.Distances = append(t.Distances, ActiveDistance{
			LabelA:   ts.Species.Atoms[b[0]].Label,
			LabelB:   ts.Species.Atoms[b[1]].Label,
			Forming:  forming,
			Distance: ts.Species.Distance(b[0], b[1]),
		})
	}
	for _, b := range ts.Rearrangement.FBonds {
		add(b, true)
	}
	for _, b := range ts.Rearrangement.BBonds {
		add(b, false)
	}
	return t
}

// MatchDistances resolves the template's label-keyed distances onto the
// active bonds of a concrete species, or false when any bond has no
// matching entry.
func (t *Template) MatchDistances(s *species.Species, r *rearrange.Rearrangement) (map[molgraph.Bond]float64, bool) {
	out := make(map[molgraph.Bond]float64)
	match := func(b molgraph.Bond, forming bool) bool {
		la, lb := s.Atoms[b[0]].Label, s.Atoms[b[1]].Label
		for _, d := range t.Distances {
			if d.Forming != forming {
				continue
			}
			if (d.LabelA == la && d.LabelB == lb) || (d.LabelA == lb && d.LabelB == la) {
				out[b] = d.Distance
				return true
			}
		}
		return false
	}
	for _, b := range r.FBonds {
		if !match(b, true) {
			return nil, false
		}
	}
	for _, b := range r.BBonds {
		if !match(b, false) {
			return nil, false
		}
	}
	return out, true
}

// TemplateStore persists templates keyed by rearrangement signature.
type TemplateStore interface {
	// Load returns the stored template for a signature, or an
	// ErrCodeTemplateNotFound error.
	Load(ctx context.Context, signature string) (*Template, error)
	Save(ctx context.Context, t *Template) error
}

// MemoryTemplateStore is a process-local TemplateStore, used when no
// database is configured and in tests.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewMemoryTemplateStore returns an empty in-memory store.
func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[string]*Template)}
}

func (m *MemoryTemplateStore) Load(_ context.Context, signature string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[signature]
	if !ok {
		return nil, errors.New(errors.ErrCodeTemplateNotFound, "no template for signature").
			WithDetail(signature)
	}
	return t, nil
}

func (m *MemoryTemplateStore) Save(_ context.Context, t *Template) error {
	if t.Signature == "" {
		return errors.New(errors.ErrCodeTemplateInvalid, "template has no signature")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.Signature] = t
	return nil
}
