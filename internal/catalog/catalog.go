// Package catalog defines the firearm and optic catalog entities shared by the
// resolver, the CSV reconciliation engine and the admin surface.
package catalog

import "time"

// Table names as stored.
const (
	TableMakes            = "makes"
	TableOpticMakes       = "optic_makes"
	TableFootprints       = "footprints"
	TableModels           = "models"
	TableModelFootprints  = "model_footprints"
	TablePlates           = "plates"
	TableOptics           = "optics"
	TableOpticFootprints  = "optic_footprints"
	TableOpticModelCompat = "optic_model_compat"
	TableAuditLog         = "audit_log"
)

// ImportOrder is the order parent tables must be loaded in, since references
// are resolved against the catalog as it was before each batch.
var ImportOrder = []string{
	TableMakes,
	TableOpticMakes,
	TableFootprints,
	TableModels,
	TableOptics,
	TablePlates,
}

// CatalogTables lists every table an administrator can read or export.
var CatalogTables = []string{
	TableMakes,
	TableOpticMakes,
	TableFootprints,
	TableModels,
	TableModelFootprints,
	TablePlates,
	TableOptics,
	TableOpticFootprints,
	TableOpticModelCompat,
}

// IsCatalogTable reports whether name is one of CatalogTables.
func IsCatalogTable(name string) bool {
	for _, t := range CatalogTables {
		if t == name {
			return true
		}
	}
	return false
}

// Make is a firearm manufacturer.
type Make struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OpticMake is an optic manufacturer. Same shape as Make, separate namespace.
type OpticMake struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Footprint is a named mounting pattern shared by slide cuts and optic bases.
type Footprint struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Model is a firearm model owned by a Make.
type Model struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	MakeID  int64   `json:"make_id"`
	FitType FitType `json:"fit_type"`
	Notes   string  `json:"notes,omitempty"`
}

// ModelFootprint links a Model to a Footprint cut directly into its slide.
type ModelFootprint struct {
	ID          int64 `json:"id"`
	ModelID     int64 `json:"model_id"`
	FootprintID int64 `json:"footprint_id"`
}

// Plate is an adapter owned by one Model that presents one Footprint.
type Plate struct {
	ID          int64  `json:"id"`
	ModelID     int64  `json:"model_id"`
	Name        string `json:"name"`
	FootprintID int64  `json:"footprint_id"`
	PurchaseURL string `json:"purchase_url,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Optic is a red-dot sight.
type Optic struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	OpticMakeID     int64     `json:"optic_make_id"`
	SKU             string    `json:"sku,omitempty"`
	MSRP            *float64  `json:"msrp,omitempty"`
	Reticle         string    `json:"reticle,omitempty"`
	MountType       MountType `json:"mount_type"`
	BatteryType     string    `json:"battery_type,omitempty"`
	Solar           bool      `json:"solar"`
	AffiliateURL    string    `json:"affiliate_url,omitempty"`
	ManufacturerURL string    `json:"manufacturer_url,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
}

// OpticFootprint links a standard-mount Optic to its Footprint.
type OpticFootprint struct {
	ID          int64 `json:"id"`
	OpticID     int64 `json:"optic_id"`
	FootprintID int64 `json:"footprint_id"`
}

// OpticModelCompat links a direct-mount Optic to a Model it bolts onto.
type OpticModelCompat struct {
	ID      int64 `json:"id"`
	OpticID int64 `json:"optic_id"`
	ModelID int64 `json:"model_id"`
}

// AuditRecord is a stored audit log row.
type AuditRecord struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	Severity     string         `json:"severity"`
	TableKey     string         `json:"table"`
	RowID        int64          `json:"row_id,omitempty"`
	RowsAffected int            `json:"rows_affected,omitempty"`
	Actor        string         `json:"actor,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
