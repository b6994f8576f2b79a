package types

import (
	"errors"
	"strings"
	"testing"
)

func TestMarkDamagedSaturates(t *testing.T) {
	asset := Asset{Name: "Bunk bed", AssetType: AssetTypeBed, TotalQuantity: 3, Condition: ConditionGood}

	for i := 1; i <= 3; i++ {
		if err := asset.MarkDamaged(); err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
		if asset.DamagedQuantity != i {
			t.Fatalf("expected %d damaged, got %d", i, asset.DamagedQuantity)
		}
		want := ConditionGood
		if i == 3 {
			want = ConditionDamaged
		}
		if asset.Condition != want {
			t.Fatalf("after %d marks expected %s, got %s", i, want, asset.Condition)
		}
	}

	before := asset
	if err := asset.MarkDamaged(); !errors.Is(err, ErrAllDamaged) {
		t.Fatalf("expected ErrAllDamaged, got %v", err)
	}
	if asset != before {
		t.Fatalf("expected asset unchanged after failed mark")
	}
}

func TestAssetValidate(t *testing.T) {
	asset := Asset{Name: "Chair", TotalQuantity: 2, DamagedQuantity: 3}
	if err := asset.Validate(); err == nil {
		t.Fatalf("expected damaged > total to fail")
	}
	asset.DamagedQuantity = -1
	if err := asset.Validate(); err == nil {
		t.Fatalf("expected negative damaged to fail")
	}
	asset.DamagedQuantity = 2
	if err := asset.Validate(); err != nil {
		t.Fatalf("expected valid asset, got %v", err)
	}
	asset.DeriveCondition()
	if asset.Condition != ConditionDamaged {
		t.Fatalf("expected derived Damaged, got %s", asset.Condition)
	}
}

func TestParseAssetType(t *testing.T) {
	got, err := ParseAssetType("cupboard")
	if err != nil || got != AssetTypeCupboard {
		t.Fatalf("expected Cupboard, got %q (%v)", got, err)
	}
	if _, err := ParseAssetType("Sofa"); err == nil {
		t.Fatalf("expected unknown type to fail")
	}
}

func TestAssetValidateNameLength(t *testing.T) {
	asset := Asset{Name: strings.Repeat("é", MaxAssetNameLength), TotalQuantity: 1}
	if err := asset.Validate(); err != nil {
		t.Fatalf("expected %d multibyte characters to fit, got %v", MaxAssetNameLength, err)
	}
	asset.Name += "x"
	if err := asset.Validate(); err == nil {
		t.Fatal("expected over-long name to fail")
	}
}
