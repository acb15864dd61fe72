package catalog

import (
	"fmt"
	"strings"
)

// FitType classifies how a firearm model accepts optics.
// The zero value is not a valid fit type.
type FitType uint8

const (
	FitSingle FitType = iota + 1
	FitMulti
	FitPlateBased
	FitMixed
)

// FitTypes lists every valid fit type in display order.
var FitTypes = []FitType{FitSingle, FitMulti, FitPlateBased, FitMixed}

// DefaultFitType applies when an imported model leaves fit_type blank.
const DefaultFitType = FitSingle

// ParseFitType parses the stored/imported form of a fit type.
func ParseFitType(s string) (FitType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return FitSingle, nil
	case "multi":
		return FitMulti, nil
	case "plate_based":
		return FitPlateBased, nil
	case "mixed":
		return FitMixed, nil
	}
	return 0, fmt.Errorf("invalid fit_type %q", s)
}

func (f FitType) String() string {
	switch f {
	case FitSingle:
		return "single"
	case FitMulti:
		return "multi"
	case FitPlateBased:
		return "plate_based"
	case FitMixed:
		return "mixed"
	}
	return fmt.Sprintf("FitType(%d)", uint8(f))
}

// Label is the human-readable form used in views.
func (f FitType) Label() string {
	switch f {
	case FitSingle:
		return "Single footprint"
	case FitMulti:
		return "Multiple footprints"
	case FitPlateBased:
		return "Plate required"
	case FitMixed:
		return "Direct cut + plates"
	}
	return "Unknown"
}

// Valid reports whether f is one of the declared fit types.
func (f FitType) Valid() bool {
	switch f {
	case FitSingle, FitMulti, FitPlateBased, FitMixed:
		return true
	}
	return false
}

// HasDirectFootprints reports whether models of this fit type are cut for
// footprints directly (as opposed to only through plates).
func (f FitType) HasDirectFootprints() bool {
	switch f {
	case FitSingle, FitMulti, FitMixed:
		return true
	case FitPlateBased:
		return false
	}
	return false
}

// UsesPlates reports whether plates are a mounting path for this fit type.
func (f FitType) UsesPlates() bool {
	switch f {
	case FitPlateBased, FitMixed:
		return true
	case FitSingle, FitMulti:
		return false
	}
	return false
}

// CheckFootprintCount validates the number of direct footprint links a model
// of this fit type carries.
func (f FitType) CheckFootprintCount(n int) error {
	switch f {
	case FitSingle:
		if n != 1 {
			return fmt.Errorf("single fit requires exactly one footprint, got %d", n)
		}
	case FitMulti:
		if n < 2 {
			return fmt.Errorf("multi fit requires at least two footprints, got %d", n)
		}
	case FitPlateBased:
		if n != 0 {
			return fmt.Errorf("plate_based fit takes no direct footprints, got %d", n)
		}
	case FitMixed:
		if n < 1 {
			return fmt.Errorf("mixed fit requires at least one footprint, got %d", n)
		}
	default:
		return fmt.Errorf("invalid fit_type %v", f)
	}
	return nil
}

// MarshalText encodes invalid values as an empty string.
func (f FitType) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return []byte{}, nil
	}
	return []byte(f.String()), nil
}

func (f *FitType) UnmarshalText(b []byte) error {
	v, err := ParseFitType(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// MountType says how an optic attaches to a slide.
type MountType uint8

const (
	MountStandard MountType = iota + 1
	MountDirect
)

// MountTypes lists every valid mount type.
var MountTypes = []MountType{MountStandard, MountDirect}

// DefaultMountType applies when an imported optic leaves mount_type blank.
const DefaultMountType = MountStandard

// ParseMountType parses the stored/imported form of a mount type.
func ParseMountType(s string) (MountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return MountStandard, nil
	case "direct_mount":
		return MountDirect, nil
	}
	return 0, fmt.Errorf("invalid mount_type %q", s)
}

func (m MountType) String() string {
	switch m {
	case MountStandard:
		return "standard"
	case MountDirect:
		return "direct_mount"
	}
	return fmt.Sprintf("MountType(%d)", uint8(m))
}

// Label is the human-readable form used in views.
func (m MountType) Label() string {
	switch m {
	case MountStandard:
		return "Footprint mount"
	case MountDirect:
		return "Direct mount"
	}
	return "Unknown"
}

// Valid reports whether m is one of the declared mount types.
func (m MountType) Valid() bool {
	switch m {
	case MountStandard, MountDirect:
		return true
	}
	return false
}

// UsesFootprint reports whether optics of this mount type attach through a
// footprint. Direct-mount optics never do, even if a stale join row says so.
func (m MountType) UsesFootprint() bool {
	switch m {
	case MountStandard:
		return true
	case MountDirect:
		return false
	}
	return false
}

// MarshalText encodes invalid values as an empty string.
func (m MountType) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return []byte{}, nil
	}
	return []byte(m.String()), nil
}

func (m *MountType) UnmarshalText(b []byte) error {
	v, err := ParseMountType(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
