package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// ListMakes returns firearm makes ordered by name.
func (s *Service) ListMakes(ctx context.Context) ([]catalog.Make, error) {
	return cached(ctx, s.cache, "makes", func(ctx context.Context) ([]catalog.Make, error) {
		rows, err := s.store.Select(ctx, catalog.TableMakes, store.Query{}.Order("name"))
		if err != nil {
			return nil, fmt.Errorf("list makes: %w", err)
		}
		out := make([]catalog.Make, len(rows))
		for i, r := range rows {
			out[i] = decodeMake(r)
		}
		return out, nil
	})
}

// ListOpticMakes returns optic makes ordered by name.
func (s *Service) ListOpticMakes(ctx context.Context) ([]catalog.OpticMake, error) {
	return cached(ctx, s.cache, "optic_makes", func(ctx context.Context) ([]catalog.OpticMake, error) {
		rows, err := s.store.Select(ctx, catalog.TableOpticMakes, store.Query{}.Order("name"))
		if err != nil {
			return nil, fmt.Errorf("list optic makes: %w", err)
		}
		out := make([]catalog.OpticMake, len(rows))
		for i, r := range rows {
			out[i] = decodeOpticMake(r)
		}
		return out, nil
	})
}

// ListFootprints returns footprints ordered by name.
func (s *Service) ListFootprints(ctx context.Context) ([]catalog.Footprint, error) {
	return cached(ctx, s.cache, "footprints", func(ctx context.Context) ([]catalog.Footprint, error) {
		rows, err := s.store.Select(ctx, catalog.TableFootprints, store.Query{}.Order("name"))
		if err != nil {
			return nil, fmt.Errorf("list footprints: %w", err)
		}
		out := make([]catalog.Footprint, len(rows))
		for i, r := range rows {
			out[i] = decodeFootprint(r)
		}
		return out, nil
	})
}

// ListModelsByMake returns the models of one make ordered by name. Rows with
// an unreadable fit type are left out and logged.
func (s *Service) ListModelsByMake(ctx context.Context, makeID int64) ([]catalog.Model, error) {
	key := fmt.Sprintf("models:make=%d", makeID)
	return cached(ctx, s.cache, key, func(ctx context.Context) ([]catalog.Model, error) {
		rows, err := s.store.Select(ctx, catalog.TableModels, store.Where(store.Eq("make_id", makeID)).Order("name"))
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		return decodeModels(ctx, rows), nil
	})
}

// ListModels returns every model ordered by name.
func (s *Service) ListModels(ctx context.Context) ([]catalog.Model, error) {
	return cached(ctx, s.cache, "models", func(ctx context.Context) ([]catalog.Model, error) {
		rows, err := s.store.Select(ctx, catalog.TableModels, store.Query{}.Order("name"))
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		return decodeModels(ctx, rows), nil
	})
}

func decodeModels(ctx context.Context, rows []store.Row) []catalog.Model {
	out := make([]catalog.Model, 0, len(rows))
	for _, r := range rows {
		m, err := decodeModel(r)
		if err != nil {
			logging.FromContext(ctx).Warn("skipping unreadable model", "error", err)
			continue
		}
		out = append(out, m)
	}
	return out
}

// ListOptics returns every optic ordered by name.
func (s *Service) ListOptics(ctx context.Context) ([]catalog.Optic, error) {
	return cached(ctx, s.cache, "optics", func(ctx context.Context) ([]catalog.Optic, error) {
		rows, err := s.store.Select(ctx, catalog.TableOptics, store.Query{}.Order("name"))
		if err != nil {
			return nil, fmt.Errorf("list optics: %w", err)
		}
		out := make([]catalog.Optic, 0, len(rows))
		for _, r := range rows {
			o, err := decodeOptic(r)
			if err != nil {
				logging.FromContext(ctx).Warn("skipping unreadable optic", "error", err)
				continue
			}
			out = append(out, o)
		}
		return out, nil
	})
}

// ListPlates returns plates ordered by name, all of them when modelID is 0.
func (s *Service) ListPlates(ctx context.Context, modelID int64) ([]catalog.Plate, error) {
	key := fmt.Sprintf("plates:model=%d", modelID)
	return cached(ctx, s.cache, key, func(ctx context.Context) ([]catalog.Plate, error) {
		q := store.Query{}
		if modelID != 0 {
			q = store.Where(store.Eq("model_id", modelID))
		}
		rows, err := s.store.Select(ctx, catalog.TablePlates, q.Order("name"))
		if err != nil {
			return nil, fmt.Errorf("list plates: %w", err)
		}
		out := make([]catalog.Plate, len(rows))
		for i, r := range rows {
			out[i] = decodePlate(r)
		}
		return out, nil
	})
}

// GetMake returns one make or store.ErrNotFound.
func (s *Service) GetMake(ctx context.Context, id int64) (catalog.Make, error) {
	row, err := s.store.SelectOne(ctx, catalog.TableMakes, store.Where(store.Eq("id", id)))
	if err != nil {
		return catalog.Make{}, err
	}
	return decodeMake(row), nil
}

// ListRows returns the raw rows of any catalog table for the admin grid.
// Not cached: the grid must always show the stored state.
func (s *Service) ListRows(ctx context.Context, table string) ([]store.Row, error) {
	if !catalog.IsCatalogTable(table) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	q := store.Query{}
	if hasNameColumn(table) {
		q = q.Order("name")
	}
	rows, err := s.store.Select(ctx, table, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return rows, nil
}

func hasNameColumn(table string) bool {
	switch table {
	case catalog.TableModelFootprints, catalog.TableOpticFootprints, catalog.TableOpticModelCompat:
		return false
	}
	return true
}

// Ping checks the store by reading one make.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.SelectOne(ctx, catalog.TableMakes, store.Query{})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
