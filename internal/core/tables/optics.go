package tables

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/opticfit/internal/catalog"
	"github.com/JonMunkholm/opticfit/internal/core"
	"github.com/JonMunkholm/opticfit/internal/store"
)

func init() {
	core.Register(core.TableDefinition{
		Info: core.TableInfo{
			Key:         catalog.TableOptics,
			Label:       "Optics",
			ScopeColumn: "optic_make_id",
			Order:       4,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "name", Required: true, Description: "Optic name, unique within its make"},
			{Name: "optic_make", Required: true, Description: "Existing optic make name (case-insensitive)"},
			{Name: "footprint", Description: "Existing footprint name; linked when the optic is new"},
			{Name: "mount_type", Description: "standard or direct_mount (default standard)"},
			{Name: "sku"},
			{Name: "msrp", Description: "Price in USD"},
			{Name: "reticle"},
			{Name: "battery_type"},
			{Name: "solar", Description: "true/1 or false"},
			{Name: "affiliate_url"},
			{Name: "manufacturer_url"},
			{Name: "image_url"},
			{Name: "notes", Description: "Free text"},
		},
		Build: buildOptic,
	})
}

var errDirectMountFootprint = errors.New("direct_mount optic cannot have a footprint")

var opticTextColumns = []string{"sku", "reticle", "battery_type", "affiliate_url", "manufacturer_url", "image_url"}

func buildOptic(rec core.Record, refs *core.Snapshot) (core.Prepared, error) {
	name, err := required(rec, "name")
	if err != nil {
		return core.Prepared{}, err
	}
	makeName, err := required(rec, "optic_make")
	if err != nil {
		return core.Prepared{}, err
	}
	makeID, ok := refs.OpticMakeID(makeName)
	if !ok {
		return core.Prepared{}, fmt.Errorf("optic make %q not found", makeName)
	}

	var footprintID int64
	if fp := rec.Get("footprint"); fp != "" {
		footprintID, ok = refs.FootprintID(fp)
		if !ok {
			return core.Prepared{}, fmt.Errorf("footprint %q not found", fp)
		}
	}

	mount := catalog.DefaultMountType
	if v := rec.Get("mount_type"); v != "" {
		mount, err = catalog.ParseMountType(v)
		if err != nil {
			return core.Prepared{}, err
		}
	}
	if mount == catalog.MountDirect && footprintID != 0 {
		return core.Prepared{}, errDirectMountFootprint
	}

	row := store.Row{
		"name":          name,
		"optic_make_id": makeID,
		"mount_type":    mount.String(),
	}
	if _, ok := rec["msrp"]; ok {
		msrp, err := ParseMSRP(rec.Get("msrp"))
		if err != nil {
			return core.Prepared{}, err
		}
		row["msrp"] = msrp
	}
	if _, ok := rec["solar"]; ok {
		row["solar"] = ParseSolar(rec.Get("solar"))
	}
	for _, col := range opticTextColumns {
		setOptional(row, rec, col, strings.TrimSpace)
	}
	setOptional(row, rec, "notes", sanitizeNotes)

	p := core.Prepared{Name: name, Scope: makeID, Row: row}
	if footprintID != 0 {
		p.OnInsert = []core.Link{{
			Table:       catalog.TableOpticFootprints,
			OwnerColumn: "optic_id",
			Row:         store.Row{"footprint_id": footprintID},
		}}
	}
	return p, nil
}
