package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/store"
)

// ModelInput is the manual-entry form for a firearm model.
type ModelInput struct {
	Name         string  `json:"name" validate:"required,max=200"`
	MakeID       int64   `json:"make_id" validate:"required,gt=0"`
	FitType      string  `json:"fit_type"`
	Notes        string  `json:"notes" validate:"max=4000"`
	FootprintIDs []int64 `json:"footprint_ids" validate:"unique,dive,gt=0"`
}

// OpticInput is the manual-entry form for an optic. Standard optics take a
// footprint; direct-mount optics take the models they bolt onto.
type OpticInput struct {
	Name            string   `json:"name" validate:"required,max=200"`
	OpticMakeID     int64    `json:"optic_make_id" validate:"required,gt=0"`
	MountType       string   `json:"mount_type"`
	SKU             string   `json:"sku" validate:"max=100"`
	MSRP            *float64 `json:"msrp" validate:"omitempty,gte=0"`
	Reticle         string   `json:"reticle" validate:"max=200"`
	BatteryType     string   `json:"battery_type" validate:"max=100"`
	Solar           bool     `json:"solar"`
	AffiliateURL    string   `json:"affiliate_url" validate:"omitempty,http_url"`
	ManufacturerURL string   `json:"manufacturer_url" validate:"omitempty,http_url"`
	ImageURL        string   `json:"image_url" validate:"omitempty,max=1000"`
	Notes           string   `json:"notes" validate:"max=4000"`
	FootprintID     int64    `json:"footprint_id" validate:"gte=0"`
	ModelIDs        []int64  `json:"model_ids" validate:"unique,dive,gt=0"`
}

// PlateInput is the manual-entry form for an adapter plate.
type PlateInput struct {
	ModelID     int64  `json:"model_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=200"`
	FootprintID int64  `json:"footprint_id" validate:"required,gt=0"`
	PurchaseURL string `json:"purchase_url" validate:"omitempty,http_url"`
	Notes       string `json:"notes" validate:"max=4000"`
}

func (in *ModelInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.FitType = strings.TrimSpace(in.FitType)
	in.Notes = SanitizeText(in.Notes)
}

func (in *OpticInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.MountType = strings.TrimSpace(in.MountType)
	in.SKU = strings.TrimSpace(in.SKU)
	in.Reticle = strings.TrimSpace(in.Reticle)
	in.BatteryType = strings.TrimSpace(in.BatteryType)
	in.AffiliateURL = strings.TrimSpace(in.AffiliateURL)
	in.ManufacturerURL = strings.TrimSpace(in.ManufacturerURL)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Notes = SanitizeText(in.Notes)
}

func (in *PlateInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.PurchaseURL = strings.TrimSpace(in.PurchaseURL)
	in.Notes = SanitizeText(in.Notes)
}

// validateModel checks the form and returns the parsed fit type.
func (s *Service) validateModel(ctx context.Context, st store.Store, in ModelInput) (catalog.FitType, error) {
	ve := validateStruct(in)

	fit, err := catalog.ParseFitType(in.FitType)
	if err != nil {
		ve.AddErr("fit_type", err)
	} else {
		ve.AddErr("footprint_ids", fit.CheckFootprintCount(len(in.FootprintIDs)))
	}

	if in.MakeID > 0 {
		if err := requireRows(ctx, st, catalog.TableMakes, in.MakeID); err != nil {
			if !isMissing(err) {
				return 0, err
			}
			ve.Add("make_id", "make does not exist")
		}
	}
	if err := requireRows(ctx, st, catalog.TableFootprints, in.FootprintIDs...); err != nil {
		if !isMissing(err) {
			return 0, err
		}
		ve.Add("footprint_ids", err.Error())
	}
	return fit, ve.Err()
}

func (s *Service) validateOptic(ctx context.Context, st store.Store, in OpticInput) (catalog.MountType, error) {
	ve := validateStruct(in)

	mount := catalog.DefaultMountType
	if in.MountType != "" {
		var err error
		mount, err = catalog.ParseMountType(in.MountType)
		if err != nil {
			ve.AddErr("mount_type", err)
		}
	}

	switch mount {
	case catalog.MountStandard:
		if in.FootprintID == 0 {
			ve.Add("footprint_id", "standard optic requires a footprint")
		}
		if len(in.ModelIDs) > 0 {
			ve.Add("model_ids", "standard optic cannot list direct-mount models")
		}
	case catalog.MountDirect:
		if in.FootprintID != 0 {
			ve.Add("footprint_id", "direct_mount optic cannot have a footprint")
		}
	}

	if in.OpticMakeID > 0 {
		if err := requireRows(ctx, st, catalog.TableOpticMakes, in.OpticMakeID); err != nil {
			if !isMissing(err) {
				return 0, err
			}
			ve.Add("optic_make_id", "optic make does not exist")
		}
	}
	if in.FootprintID > 0 {
		if err := requireRows(ctx, st, catalog.TableFootprints, in.FootprintID); err != nil {
			if !isMissing(err) {
				return 0, err
			}
			ve.Add("footprint_id", "footprint does not exist")
		}
	}
	if err := requireRows(ctx, st, catalog.TableModels, in.ModelIDs...); err != nil {
		if !isMissing(err) {
			return 0, err
		}
		ve.Add("model_ids", err.Error())
	}
	return mount, ve.Err()
}

func (s *Service) validatePlate(ctx context.Context, st store.Store, in PlateInput) error {
	ve := validateStruct(in)

	if in.ModelID > 0 {
		if err := requireRows(ctx, st, catalog.TableModels, in.ModelID); err != nil {
			if !isMissing(err) {
				return err
			}
			ve.Add("model_id", "model does not exist")
		}
	}
	if in.FootprintID > 0 {
		if err := requireRows(ctx, st, catalog.TableFootprints, in.FootprintID); err != nil {
			if !isMissing(err) {
				return err
			}
			ve.Add("footprint_id", "footprint does not exist")
		}
	}
	return ve.Err()
}

// errMissingRows reports referenced ids that are not stored.
type errMissingRows struct {
	table string
	ids   []int64
}

func (e *errMissingRows) Error() string {
	return fmt.Sprintf("%s %v does not exist", strings.TrimSuffix(e.table, "s"), e.ids)
}

func isMissing(err error) bool {
	var m *errMissingRows
	return errors.As(err, &m)
}

// requireRows checks that every id exists in table.
func requireRows(ctx context.Context, st store.Store, table string, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := st.Select(ctx, table, store.Where(store.In("id", ids)))
	if err != nil {
		return err
	}
	found := make(map[int64]bool, len(rows))
	for _, r := range rows {
		found[r.ID()] = true
	}
	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &errMissingRows{table: table, ids: missing}
	}
	return nil
}
