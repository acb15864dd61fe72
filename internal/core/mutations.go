package core

// mutations.go implements the admin write paths. Every write runs in one
// store transaction, so a rejected or failed action leaves the catalog as it
// was, and purges the listing cache once it commits.

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/store"
)

var (
	// ErrNotWritable is returned for tables (or actions) the generic editor
	// does not handle, e.g. model_footprints, which changes only through
	// UpdateModelFootprints.
	ErrNotWritable = errors.New("table is not writable through the generic editor")

	// ErrDuplicate is returned when an identical join row already exists.
	ErrDuplicate = errors.New("record already exists")
)

// CreateModel validates in against the fit-type rules and stores the model
// with its footprint links.
func (s *Service) CreateModel(ctx context.Context, in ModelInput) (catalog.Model, error) {
	in.normalize()

	var model catalog.Model
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		fit, err := s.validateModel(ctx, tx, in)
		if err != nil {
			return err
		}
		id, err := tx.Insert(ctx, catalog.TableModels, store.Row{
			"name":     in.Name,
			"make_id":  in.MakeID,
			"fit_type": fit.String(),
			"notes":    in.Notes,
		})
		if err != nil {
			return err
		}
		for _, fp := range in.FootprintIDs {
			if _, err := tx.Insert(ctx, catalog.TableModelFootprints, store.Row{"model_id": id, "footprint_id": fp}); err != nil {
				return fmt.Errorf("link footprint %d: %w", fp, err)
			}
		}
		model = catalog.Model{ID: id, Name: in.Name, MakeID: in.MakeID, FitType: fit, Notes: in.Notes}
		return nil
	})
	if err != nil {
		return catalog.Model{}, err
	}

	s.invalidate()
	s.audit(ctx, AuditLogParams{
		Action:       ActionCreate,
		TableKey:     catalog.TableModels,
		RowID:        model.ID,
		RowsAffected: 1,
		Details:      map[string]any{"name": model.Name, "fit_type": model.FitType.String(), "footprint_ids": in.FootprintIDs},
	})
	return model, nil
}

// CreateOptic stores an optic with its footprint link (standard mount) or
// its compatible models (direct mount).
func (s *Service) CreateOptic(ctx context.Context, in OpticInput) (catalog.Optic, error) {
	in.normalize()

	var optic catalog.Optic
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		mount, err := s.validateOptic(ctx, tx, in)
		if err != nil {
			return err
		}
		id, err := tx.Insert(ctx, catalog.TableOptics, store.Row{
			"name":             in.Name,
			"optic_make_id":    in.OpticMakeID,
			"sku":              in.SKU,
			"msrp":             in.MSRP,
			"reticle":          in.Reticle,
			"mount_type":       mount.String(),
			"battery_type":     in.BatteryType,
			"solar":            in.Solar,
			"affiliate_url":    in.AffiliateURL,
			"manufacturer_url": in.ManufacturerURL,
			"image_url":        in.ImageURL,
			"notes":            in.Notes,
		})
		if err != nil {
			return err
		}

		switch mount {
		case catalog.MountStandard:
			if _, err := tx.Insert(ctx, catalog.TableOpticFootprints, store.Row{"optic_id": id, "footprint_id": in.FootprintID}); err != nil {
				return fmt.Errorf("link footprint: %w", err)
			}
		case catalog.MountDirect:
			for _, m := range in.ModelIDs {
				if _, err := tx.Insert(ctx, catalog.TableOpticModelCompat, store.Row{"optic_id": id, "model_id": m}); err != nil {
					return fmt.Errorf("link model %d: %w", m, err)
				}
			}
		}

		optic = catalog.Optic{
			ID:              id,
			Name:            in.Name,
			OpticMakeID:     in.OpticMakeID,
			SKU:             in.SKU,
			MSRP:            in.MSRP,
			Reticle:         in.Reticle,
			MountType:       mount,
			BatteryType:     in.BatteryType,
			Solar:           in.Solar,
			AffiliateURL:    in.AffiliateURL,
			ManufacturerURL: in.ManufacturerURL,
			Notes:           in.Notes,
			ImageURL:        in.ImageURL,
		}
		return nil
	})
	if err != nil {
		return catalog.Optic{}, err
	}

	s.invalidate()
	s.audit(ctx, AuditLogParams{
		Action:       ActionCreate,
		TableKey:     catalog.TableOptics,
		RowID:        optic.ID,
		RowsAffected: 1,
		Details:      map[string]any{"name": optic.Name, "mount_type": optic.MountType.String()},
	})
	return optic, nil
}

// CreatePlate stores an adapter plate for a model.
func (s *Service) CreatePlate(ctx context.Context, in PlateInput) (catalog.Plate, error) {
	in.normalize()

	var plate catalog.Plate
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if err := s.validatePlate(ctx, tx, in); err != nil {
			return err
		}
		id, err := tx.Insert(ctx, catalog.TablePlates, store.Row{
			"name":         in.Name,
			"model_id":     in.ModelID,
			"footprint_id": in.FootprintID,
			"purchase_url": in.PurchaseURL,
			"notes":        in.Notes,
		})
		if err != nil {
			return err
		}
		plate = catalog.Plate{
			ID:          id,
			ModelID:     in.ModelID,
			Name:        in.Name,
			FootprintID: in.FootprintID,
			PurchaseURL: in.PurchaseURL,
			Notes:       in.Notes,
		}
		return nil
	})
	if err != nil {
		return catalog.Plate{}, err
	}

	s.invalidate()
	s.audit(ctx, AuditLogParams{
		Action:       ActionCreate,
		TableKey:     catalog.TablePlates,
		RowID:        plate.ID,
		RowsAffected: 1,
		Details:      map[string]any{"name": plate.Name, "model_id": plate.ModelID},
	})
	return plate, nil
}

// UpdateModelFootprints replaces the direct footprint links of a model after
// checking the new set against the stored fit type.
func (s *Service) UpdateModelFootprints(ctx context.Context, modelID int64, footprintIDs []int64) error {
	footprintIDs = dedupeIDs(footprintIDs)

	err := s.store.WithTx(ctx, func(tx store.Store) error {
		row, err := tx.SelectOne(ctx, catalog.TableModels, store.Where(store.Eq("id", modelID)))
		if err != nil {
			return err
		}
		model, err := decodeModel(row)
		if err != nil {
			return err
		}

		var ve ValidationErrors
		ve.AddErr("footprint_ids", model.FitType.CheckFootprintCount(len(footprintIDs)))
		if err := requireRows(ctx, tx, catalog.TableFootprints, footprintIDs...); err != nil {
			if !isMissing(err) {
				return err
			}
			ve.Add("footprint_ids", err.Error())
		}
		if err := ve.Err(); err != nil {
			return err
		}

		if _, err := tx.DeleteWhere(ctx, catalog.TableModelFootprints, store.Eq("model_id", modelID)); err != nil {
			return err
		}
		for _, fp := range footprintIDs {
			if _, err := tx.Insert(ctx, catalog.TableModelFootprints, store.Row{"model_id": modelID, "footprint_id": fp}); err != nil {
				return fmt.Errorf("link footprint %d: %w", fp, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate()
	s.audit(ctx, AuditLogParams{
		Action:       ActionLinkReplace,
		TableKey:     catalog.TableModelFootprints,
		RowID:        modelID,
		RowsAffected: len(footprintIDs),
		Details:      map[string]any{"footprint_ids": footprintIDs},
	})
	return nil
}

// Create inserts a row into one of the simple tables (makes, optic makes,
// footprints, optic links). Models, optics and plates have dedicated forms.
func (s *Service) Create(ctx context.Context, table string, data map[string]any) (int64, error) {
	rules, err := rulesFor(table)
	if err != nil {
		return 0, err
	}
	if !rules.create {
		return 0, fmt.Errorf("%w: create %s", ErrNotWritable, table)
	}
	row, err := rules.coerce(data, true)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := rules.checkRefs(ctx, tx, row); err != nil {
			return err
		}
		if err := checkLinkRules(ctx, tx, table, row); err != nil {
			return err
		}
		id, err = tx.Insert(ctx, table, row)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.invalidate()
	s.audit(ctx, AuditLogParams{
		Action:       ActionCreate,
		TableKey:     table,
		RowID:        id,
		RowsAffected: 1,
		Details:      map[string]any(row),
	})
	return id, nil
}

// Update applies the allowed columns of data to row id of table.
func (s *Service) Update(ctx context.Context, table string, id int64, data map[string]any) error {
	rules, err := rulesFor(table)
	if err != nil {
		return err
	}
	if !rules.update {
		return fmt.Errorf("%w: update %s", ErrNotWritable, table)
	}
	row, err := rules.coerce(data, false)
	if err != nil {
		return err
	}
	if len(row) == 0 {
		return ValidationErrors{{Message: "nothing to update"}}
	}

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		current, err := tx.SelectOne(ctx, table, store.Where(store.Eq("id", id)))
		if err != nil {
			return err
		}
		if err := rules.checkRefs(ctx, tx, row); err != nil {
			return err
		}
		if err := checkVariantChange(ctx, tx, table, current, row); err != nil {
			return err
		}
		return tx.Update(ctx, table, id, row)
	})
	if err != nil {
		return err
	}

	s.invalidate()
	s.audit(ctx, AuditLogParams{
		Action:       ActionUpdate,
		TableKey:     table,
		RowID:        id,
		RowsAffected: 1,
		Details:      map[string]any(row),
	})
	return nil
}

// Delete removes row id of table together with its dependents:
//
//	makes       -> models (and their dependents)
//	optic_makes -> optics (and their dependents)
//	models      -> model_footprints, plates, optic_model_compat
//	footprints  -> model_footprints, optic_footprints, plates presenting it
//	optics      -> optic_footprints, optic_model_compat
//
// It returns the number of rows removed, dependents included.
func (s *Service) Delete(ctx context.Context, table string, id int64) (int64, error) {
	if _, err := rulesFor(table); err != nil {
		return 0, err
	}
	if table == catalog.TableModelFootprints {
		return 0, fmt.Errorf("%w: delete %s", ErrNotWritable, table)
	}

	var removed int64
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.SelectOne(ctx, table, store.Where(store.Eq("id", id))); err != nil {
			return err
		}
		var err error
		removed, err = deleteCascade(ctx, tx, table, id)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.invalidate()
	s.audit(ctx, AuditLogParams{
		Action:       ActionDelete,
		TableKey:     table,
		RowID:        id,
		RowsAffected: int(removed),
	})
	return removed, nil
}

func deleteCascade(ctx context.Context, tx store.Store, table string, id int64) (int64, error) {
	var n int64

	deleteChildren := func(child, column string) error {
		rows, err := tx.Select(ctx, child, store.Where(store.Eq(column, id)))
		if err != nil {
			return err
		}
		for _, r := range rows {
			c, err := deleteCascade(ctx, tx, child, r.ID())
			if err != nil {
				return err
			}
			n += c
		}
		return nil
	}
	deleteWhere := func(child, column string) error {
		c, err := tx.DeleteWhere(ctx, child, store.Eq(column, id))
		n += c
		return err
	}

	var err error
	switch table {
	case catalog.TableMakes:
		err = deleteChildren(catalog.TableModels, "make_id")
	case catalog.TableOpticMakes:
		err = deleteChildren(catalog.TableOptics, "optic_make_id")
	case catalog.TableModels:
		err = errors.Join(
			deleteWhere(catalog.TableModelFootprints, "model_id"),
			deleteWhere(catalog.TablePlates, "model_id"),
			deleteWhere(catalog.TableOpticModelCompat, "model_id"),
		)
	case catalog.TableFootprints:
		err = errors.Join(
			deleteWhere(catalog.TableModelFootprints, "footprint_id"),
			deleteWhere(catalog.TableOpticFootprints, "footprint_id"),
			deleteWhere(catalog.TablePlates, "footprint_id"),
		)
	case catalog.TableOptics:
		err = errors.Join(
			deleteWhere(catalog.TableOpticFootprints, "optic_id"),
			deleteWhere(catalog.TableOpticModelCompat, "optic_id"),
		)
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Delete(ctx, table, id); err != nil {
		return 0, err
	}
	return n + 1, nil
}

// checkLinkRules rejects duplicate join rows and joins that contradict the
// optic's mount type.
func checkLinkRules(ctx context.Context, tx store.Store, table string, row store.Row) error {
	var wantMount catalog.MountType
	switch table {
	case catalog.TableOpticFootprints:
		wantMount = catalog.MountStandard
	case catalog.TableOpticModelCompat:
		wantMount = catalog.MountDirect
	default:
		return nil
	}

	optic, err := tx.SelectOne(ctx, catalog.TableOptics, store.Where(store.Eq("id", row.Int64("optic_id"))))
	if err != nil {
		return err
	}
	mount, err := catalog.ParseMountType(optic.String("mount_type"))
	if err != nil {
		return err
	}
	if mount != wantMount {
		if mount == catalog.MountDirect {
			return ValidationErrors{{Field: "optic_id", Message: "direct_mount optic cannot have a footprint"}}
		}
		return ValidationErrors{{Field: "optic_id", Message: "standard optic cannot list direct-mount models"}}
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	filters := make([]store.Filter, len(cols))
	for i, c := range cols {
		filters[i] = store.Eq(c, row[c])
	}
	_, err = tx.SelectOne(ctx, table, store.Where(filters...))
	switch {
	case err == nil:
		return ErrDuplicate
	case errors.Is(err, store.ErrNotFound):
		return nil
	}
	return err
}

// checkVariantChange re-checks the closed-variant rules when an update
// changes a model's fit type or an optic's mount type.
func checkVariantChange(ctx context.Context, tx store.Store, table string, current, next store.Row) error {
	switch table {
	case catalog.TableModels:
		v, ok := next["fit_type"].(string)
		if !ok || v == current.String("fit_type") {
			return nil
		}
		fit, err := catalog.ParseFitType(v)
		if err != nil {
			return err
		}
		links, err := tx.Select(ctx, catalog.TableModelFootprints, store.Where(store.Eq("model_id", current.ID())))
		if err != nil {
			return err
		}
		if err := fit.CheckFootprintCount(len(links)); err != nil {
			return ValidationErrors{{Field: "fit_type", Value: v, Message: err.Error()}}
		}

	case catalog.TableOptics:
		v, ok := next["mount_type"].(string)
		if !ok || v == current.String("mount_type") {
			return nil
		}
		mount, err := catalog.ParseMountType(v)
		if err != nil {
			return err
		}
		switch mount {
		case catalog.MountDirect:
			links, err := tx.Select(ctx, catalog.TableOpticFootprints, store.Where(store.Eq("optic_id", current.ID())))
			if err != nil {
				return err
			}
			if len(links) > 0 {
				return ValidationErrors{{Field: "mount_type", Value: v, Message: "direct_mount optic cannot have a footprint; remove its footprint links first"}}
			}
		case catalog.MountStandard:
			links, err := tx.Select(ctx, catalog.TableOpticModelCompat, store.Where(store.Eq("optic_id", current.ID())))
			if err != nil {
				return err
			}
			if len(links) > 0 {
				return ValidationErrors{{Field: "mount_type", Value: v, Message: "standard optic cannot list direct-mount models; remove its model links first"}}
			}
		}
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
