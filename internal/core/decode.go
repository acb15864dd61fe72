package core

import (
	"fmt"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/store"
)

func decodeMake(r store.Row) catalog.Make {
	return catalog.Make{ID: r.ID(), Name: r.String("name")}
}

func decodeOpticMake(r store.Row) catalog.OpticMake {
	return catalog.OpticMake{ID: r.ID(), Name: r.String("name")}
}

func decodeFootprint(r store.Row) catalog.Footprint {
	return catalog.Footprint{
		ID:          r.ID(),
		Name:        r.String("name"),
		Description: r.String("description"),
	}
}

func decodeModel(r store.Row) (catalog.Model, error) {
	fit, err := catalog.ParseFitType(r.String("fit_type"))
	if err != nil {
		return catalog.Model{}, fmt.Errorf("model %d: %w", r.ID(), err)
	}
	return catalog.Model{
		ID:      r.ID(),
		Name:    r.String("name"),
		MakeID:  r.Int64("make_id"),
		FitType: fit,
		Notes:   r.String("notes"),
	}, nil
}

func decodePlate(r store.Row) catalog.Plate {
	return catalog.Plate{
		ID:          r.ID(),
		ModelID:     r.Int64("model_id"),
		Name:        r.String("name"),
		FootprintID: r.Int64("footprint_id"),
		PurchaseURL: r.String("purchase_url"),
		Notes:       r.String("notes"),
	}
}

func decodeOptic(r store.Row) (catalog.Optic, error) {
	mount, err := catalog.ParseMountType(r.String("mount_type"))
	if err != nil {
		return catalog.Optic{}, fmt.Errorf("optic %d: %w", r.ID(), err)
	}
	return catalog.Optic{
		ID:              r.ID(),
		Name:            r.String("name"),
		OpticMakeID:     r.Int64("optic_make_id"),
		SKU:             r.String("sku"),
		MSRP:            r.Float("msrp"),
		Reticle:         r.String("reticle"),
		MountType:       mount,
		BatteryType:     r.String("battery_type"),
		Solar:           r.Bool("solar"),
		AffiliateURL:    r.String("affiliate_url"),
		ManufacturerURL: r.String("manufacturer_url"),
		Notes:           r.String("notes"),
		ImageURL:        r.String("image_url"),
	}, nil
}

// idsOf collects column values in first-seen order without duplicates.
func idsOf(rows []store.Row, column string) []int64 {
	seen := make(map[int64]bool, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		id := r.Int64(column)
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
