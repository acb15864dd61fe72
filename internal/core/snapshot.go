package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// ErrAmbiguousReference is returned when a natural name matches more than
// one parent row and nothing in the record narrows it down.
var ErrAmbiguousReference = errors.New("ambiguous reference")

// Snapshot holds the natural-name -> id maps used to resolve references in
// one import batch. It is taken once, before the first row, so rows inserted
// earlier in the same batch are not visible to later rows.
type Snapshot struct {
	makes      map[string]int64
	opticMakes map[string]int64
	footprints map[string]int64
	models     map[string][]modelRef
}

type modelRef struct {
	id     int64
	makeID int64
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		makes:      make(map[string]int64),
		opticMakes: make(map[string]int64),
		footprints: make(map[string]int64),
		models:     make(map[string][]modelRef),
	}
}

func refKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddMake records a firearm make.
func (s *Snapshot) AddMake(name string, id int64) { s.makes[refKey(name)] = id }

// AddOpticMake records an optic make.
func (s *Snapshot) AddOpticMake(name string, id int64) { s.opticMakes[refKey(name)] = id }

// AddFootprint records a footprint.
func (s *Snapshot) AddFootprint(name string, id int64) { s.footprints[refKey(name)] = id }

// AddModel records a firearm model under its make.
func (s *Snapshot) AddModel(name string, id, makeID int64) {
	k := refKey(name)
	s.models[k] = append(s.models[k], modelRef{id: id, makeID: makeID})
}

// MakeID looks up a make by name, case-insensitively.
func (s *Snapshot) MakeID(name string) (int64, bool) {
	id, ok := s.makes[refKey(name)]
	return id, ok
}

// OpticMakeID looks up an optic make by name, case-insensitively.
func (s *Snapshot) OpticMakeID(name string) (int64, bool) {
	id, ok := s.opticMakes[refKey(name)]
	return id, ok
}

// FootprintID looks up a footprint by name, case-insensitively.
func (s *Snapshot) FootprintID(name string) (int64, bool) {
	id, ok := s.footprints[refKey(name)]
	return id, ok
}

// ModelID looks up a model by name, case-insensitively. When makeName is
// non-empty only models of that make are considered. A name shared by models
// of different makes is ambiguous without a make.
func (s *Snapshot) ModelID(name, makeName string) (int64, error) {
	refs := s.models[refKey(name)]

	if makeName != "" {
		makeID, ok := s.MakeID(makeName)
		if !ok {
			return 0, fmt.Errorf("make %q not found", makeName)
		}
		for _, r := range refs {
			if r.makeID == makeID {
				return r.id, nil
			}
		}
		return 0, fmt.Errorf("model %q not found for make %q", name, makeName)
	}

	switch len(refs) {
	case 0:
		return 0, fmt.Errorf("model %q not found", name)
	case 1:
		return refs[0].id, nil
	}
	return 0, fmt.Errorf("model %q: %w (matches %d makes, add a make column)", name, ErrAmbiguousReference, len(refs))
}

// loadSnapshot reads every parent table once, concurrently.
func (s *Service) loadSnapshot(ctx context.Context) (*Snapshot, error) {
	var makes, opticMakes, footprints, models []store.Row

	g, gctx := errgroup.WithContext(ctx)
	load := func(table string, dst *[]store.Row) {
		g.Go(func() error {
			rows, err := s.store.Select(gctx, table, store.Query{})
			if err != nil {
				return fmt.Errorf("load %s: %w", table, err)
			}
			*dst = rows
			return nil
		})
	}
	load(catalog.TableMakes, &makes)
	load(catalog.TableOpticMakes, &opticMakes)
	load(catalog.TableFootprints, &footprints)
	load(catalog.TableModels, &models)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := NewSnapshot()
	for _, r := range makes {
		snap.AddMake(r.String("name"), r.ID())
	}
	for _, r := range opticMakes {
		snap.AddOpticMake(r.String("name"), r.ID())
	}
	for _, r := range footprints {
		snap.AddFootprint(r.String("name"), r.ID())
	}
	for _, r := range models {
		snap.AddModel(r.String("name"), r.ID(), r.Int64("make_id"))
	}
	return snap, nil
}
