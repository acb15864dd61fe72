package core

// resolver.go computes the optics compatible with a firearm model.
//
// Three independent pools are produced:
//
//   - footprint groups: optics sharing a footprint cut directly into the slide
//   - plate groups: optics fitting the footprint an adapter plate presents
//   - direct optics: optics listed as bolting straight onto the model
//
// The pools are fetched concurrently and each group within a pool is fetched
// concurrently, bounded by Options.ResolveConcurrency. Missing data yields
// empty pools. Dangling references are skipped. Only store failures abort.

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// FootprintGroup is a footprint cut into the model and the optics that fit it.
type FootprintGroup struct {
	Footprint catalog.Footprint `json:"footprint"`
	Optics    []catalog.Optic   `json:"optics"`
}

// PlateGroup is an adapter plate for the model, the footprint it presents and
// the optics that fit it. Optics may be empty.
type PlateGroup struct {
	Plate     catalog.Plate     `json:"plate"`
	Footprint catalog.Footprint `json:"footprint"`
	Optics    []catalog.Optic   `json:"optics"`
}

// Resolution is the outcome of resolving one model.
type Resolution struct {
	Model           *catalog.Model   `json:"model,omitempty"`
	Make            *catalog.Make    `json:"make,omitempty"`
	FootprintGroups []FootprintGroup `json:"footprint_groups"`
	PlateGroups     []PlateGroup     `json:"plate_groups"`
	DirectOptics    []catalog.Optic  `json:"direct_optics"`
}

// Empty reports whether no pool has any content.
func (r *Resolution) Empty() bool {
	return len(r.FootprintGroups) == 0 && len(r.PlateGroups) == 0 && len(r.DirectOptics) == 0
}

func emptyResolution() *Resolution {
	return &Resolution{
		FootprintGroups: []FootprintGroup{},
		PlateGroups:     []PlateGroup{},
		DirectOptics:    []catalog.Optic{},
	}
}

// Resolve loads the model by id and resolves it. A model that does not exist
// resolves to empty pools.
func (s *Service) Resolve(ctx context.Context, modelID int64) (*Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ResolveTimeout)
	defer cancel()

	row, err := s.store.SelectOne(ctx, catalog.TableModels, store.Where(store.Eq("id", modelID)))
	if errors.Is(err, store.ErrNotFound) {
		return emptyResolution(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve model %d: %w", modelID, err)
	}

	model, err := decodeModel(row)
	if err != nil {
		// A model with an unreadable fit type still gets its direct-mount pool.
		logging.FromContext(ctx).Warn("resolve: model has invalid fit type", "model_id", modelID, "error", err)
		model = catalog.Model{ID: row.ID(), Name: row.String("name"), MakeID: row.Int64("make_id")}
	}

	res, err := s.ResolveModel(ctx, model)
	if err != nil {
		return nil, err
	}

	if mk, err := s.store.SelectOne(ctx, catalog.TableMakes, store.Where(store.Eq("id", model.MakeID))); err == nil {
		m := decodeMake(mk)
		res.Make = &m
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("resolve make %d: %w", model.MakeID, err)
	}
	return res, nil
}

// ResolveModel computes the three compatibility pools for model.
func (s *Service) ResolveModel(ctx context.Context, model catalog.Model) (*Resolution, error) {
	res := emptyResolution()
	res.Model = &model

	var footprintPath, platePath bool
	switch model.FitType {
	case catalog.FitSingle, catalog.FitMulti:
		footprintPath = true
	case catalog.FitPlateBased:
		platePath = true
	case catalog.FitMixed:
		footprintPath, platePath = true, true
	default:
		// unknown fit type: only the direct-mount list applies
	}

	g, gctx := errgroup.WithContext(ctx)

	if footprintPath {
		g.Go(func() error {
			groups, err := s.footprintPool(gctx, model.ID)
			if err != nil {
				return fmt.Errorf("footprint pool: %w", err)
			}
			res.FootprintGroups = groups
			return nil
		})
	}
	if platePath {
		g.Go(func() error {
			groups, err := s.platePool(gctx, model.ID)
			if err != nil {
				return fmt.Errorf("plate pool: %w", err)
			}
			res.PlateGroups = groups
			return nil
		})
	}
	g.Go(func() error {
		optics, err := s.directPool(gctx, model.ID)
		if err != nil {
			return fmt.Errorf("direct pool: %w", err)
		}
		res.DirectOptics = optics
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve model %d: %w", model.ID, err)
	}
	return res, nil
}

// footprintPool returns one group per directly linked footprint that has at
// least one standard-mount optic.
func (s *Service) footprintPool(ctx context.Context, modelID int64) ([]FootprintGroup, error) {
	links, err := s.store.Select(ctx, catalog.TableModelFootprints, store.Where(store.Eq("model_id", modelID)))
	if err != nil {
		return nil, err
	}
	footprints, err := s.footprintsByID(ctx, idsOf(links, "footprint_id"))
	if err != nil {
		return nil, err
	}

	groups := make([]FootprintGroup, len(footprints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ResolveConcurrency)
	for i, fp := range footprints {
		g.Go(func() error {
			optics, err := s.opticsForFootprint(gctx, fp.ID)
			if err != nil {
				return err
			}
			groups[i] = FootprintGroup{Footprint: fp, Optics: optics}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]FootprintGroup, 0, len(groups))
	for _, grp := range groups {
		if len(grp.Optics) > 0 {
			out = append(out, grp)
		}
	}
	return out, nil
}

// platePool returns one group per plate owned by the model, including plates
// with no optics yet. Plates whose footprint no longer exists are skipped.
func (s *Service) platePool(ctx context.Context, modelID int64) ([]PlateGroup, error) {
	rows, err := s.store.Select(ctx, catalog.TablePlates, store.Where(store.Eq("model_id", modelID)).Order("name"))
	if err != nil {
		return nil, err
	}
	plates := make([]catalog.Plate, len(rows))
	for i, r := range rows {
		plates[i] = decodePlate(r)
	}

	footprints, err := s.footprintsByID(ctx, idsOf(rows, "footprint_id"))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]catalog.Footprint, len(footprints))
	for _, fp := range footprints {
		byID[fp.ID] = fp
	}

	groups := make([]*PlateGroup, len(plates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ResolveConcurrency)
	for i, p := range plates {
		fp, ok := byID[p.FootprintID]
		if !ok {
			logging.FromContext(ctx).Debug("resolve: skipping plate with dangling footprint", "plate_id", p.ID, "footprint_id", p.FootprintID)
			continue
		}
		g.Go(func() error {
			optics, err := s.opticsForFootprint(gctx, fp.ID)
			if err != nil {
				return err
			}
			groups[i] = &PlateGroup{Plate: p, Footprint: fp, Optics: optics}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]PlateGroup, 0, len(groups))
	for _, grp := range groups {
		if grp != nil {
			out = append(out, *grp)
		}
	}
	return out, nil
}

// directPool returns the optics listed as compatible with the model.
func (s *Service) directPool(ctx context.Context, modelID int64) ([]catalog.Optic, error) {
	links, err := s.store.Select(ctx, catalog.TableOpticModelCompat, store.Where(store.Eq("model_id", modelID)))
	if err != nil {
		return nil, err
	}
	return s.opticsByID(ctx, idsOf(links, "optic_id"), false)
}

// opticsForFootprint returns the standard-mount optics joined to a footprint.
// Direct-mount optics are excluded even when a join row exists.
func (s *Service) opticsForFootprint(ctx context.Context, footprintID int64) ([]catalog.Optic, error) {
	links, err := s.store.Select(ctx, catalog.TableOpticFootprints, store.Where(store.Eq("footprint_id", footprintID)))
	if err != nil {
		return nil, err
	}
	return s.opticsByID(ctx, idsOf(links, "optic_id"), true)
}

// opticsByID loads optics by id, ordered by name, skipping ids that no longer
// exist and rows that cannot be decoded.
func (s *Service) opticsByID(ctx context.Context, ids []int64, footprintOnly bool) ([]catalog.Optic, error) {
	if len(ids) == 0 {
		return []catalog.Optic{}, nil
	}
	rows, err := s.store.Select(ctx, catalog.TableOptics, store.Where(store.In("id", ids)).Order("name"))
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(rows))
	out := make([]catalog.Optic, 0, len(rows))
	for _, r := range rows {
		o, err := decodeOptic(r)
		if err != nil {
			logging.FromContext(ctx).Debug("resolve: skipping unreadable optic", "error", err)
			continue
		}
		if seen[o.ID] {
			continue
		}
		if footprintOnly && !o.MountType.UsesFootprint() {
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	return out, nil
}

// footprintsByID loads footprints ordered by name. Unknown ids are dropped.
func (s *Service) footprintsByID(ctx context.Context, ids []int64) ([]catalog.Footprint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.store.Select(ctx, catalog.TableFootprints, store.Where(store.In("id", ids)).Order("name"))
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Footprint, len(rows))
	for i, r := range rows {
		out[i] = decodeFootprint(r)
	}
	return out, nil
}
