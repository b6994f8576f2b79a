package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxAssetNameLength is the width of the assets.name column in characters.
const MaxAssetNameLength = 200

// AssetType classifies physical items. It is shared by assets and damage reports.
type AssetType string

const (
	AssetTypeBed      AssetType = "Bed"
	AssetTypeTable    AssetType = "Table"
	AssetTypeChair    AssetType = "Chair"
	AssetTypeCupboard AssetType = "Cupboard"
	AssetTypeFan      AssetType = "Fan"
	AssetTypeLight    AssetType = "Light"
	AssetTypeOther    AssetType = "Other"
)

var assetTypes = []AssetType{
	AssetTypeBed, AssetTypeTable, AssetTypeChair, AssetTypeCupboard,
	AssetTypeFan, AssetTypeLight, AssetTypeOther,
}

// ParseAssetType matches name case-insensitively against the known asset types.
func ParseAssetType(name string) (AssetType, error) {
	name = strings.TrimSpace(name)
	for _, t := range assetTypes {
		if strings.EqualFold(string(t), name) {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid asset type %q", name)
}

// Condition is the derived state of an asset.
type Condition string

const (
	ConditionGood    Condition = "Good"
	ConditionDamaged Condition = "Damaged"
)

func ParseCondition(name string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "good":
		return ConditionGood, nil
	case "damaged":
		return ConditionDamaged, nil
	}
	return "", fmt.Errorf("invalid condition %q", name)
}

// ErrAllDamaged is returned when every unit of an asset is already damaged.
var ErrAllDamaged = errors.New("all items are already damaged")

// Asset is a counted group of identical items, optionally placed in a room.
type Asset struct {
	ID              int       `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	AssetType       AssetType `json:"asset_type" db:"asset_type"`
	TotalQuantity   int       `json:"total_quantity" db:"total_quantity"`
	DamagedQuantity int       `json:"damaged_quantity" db:"damaged_quantity"`
	Condition       Condition `json:"condition" db:"condition"`
	RoomID          *int      `json:"room" db:"room_id"`
	RoomDisplay     *string   `json:"room_display" db:"-"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks the quantity invariant 0 <= damaged <= total and total >= 1.
func (a *Asset) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(a.Name) > MaxAssetNameLength {
		return fmt.Errorf("name must be at most %d characters", MaxAssetNameLength)
	}
	if a.TotalQuantity < 1 {
		return errors.New("total quantity must be at least 1")
	}
	if a.DamagedQuantity < 0 {
		return errors.New("damaged quantity cannot be negative")
	}
	if a.DamagedQuantity > a.TotalQuantity {
		return errors.New("damaged quantity cannot exceed total quantity")
	}
	return nil
}

// DeriveCondition sets Condition to Damaged exactly when every unit is damaged.
func (a *Asset) DeriveCondition() {
	if a.TotalQuantity > 0 && a.DamagedQuantity >= a.TotalQuantity {
		a.Condition = ConditionDamaged
		return
	}
	a.Condition = ConditionGood
}

// MarkDamaged records one more damaged unit.
func (a *Asset) MarkDamaged() error {
	if a.DamagedQuantity >= a.TotalQuantity {
		return ErrAllDamaged
	}
	a.DamagedQuantity++
	if a.DamagedQuantity == a.TotalQuantity {
		a.Condition = ConditionDamaged
	}
	return nil
}
