package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/prepper/internal/model"
)

func TestItemCreateAndGet(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	pkg := 6.0
	unit := "Flasche"

	it, err := s.Items.Create(ctx, alice.ID, model.ItemInput{
		Name:            "Milk",
		Quantity:        2,
		Categories:      model.Categories{"Milchprodukte"},
		LowQuantity:     1,
		MidQuantity:     3,
		Unit:            "Liter",
		PackageQuantity: &pkg,
		PackageUnit:     &unit,
		StorageLocation: "Kühlschrank",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if it.OwnerID != alice.ID || it.Name != "Milk" || it.Quantity != 2 {
		t.Errorf("item = %+v", it)
	}
	if len(it.Categories) != 1 || it.Categories[0] != "Milchprodukte" {
		t.Errorf("categories = %v", it.Categories)
	}
	if it.PackageQuantity == nil || *it.PackageQuantity != 6 {
		t.Errorf("package quantity = %v", it.PackageQuantity)
	}

	byKey, err := s.Items.GetByNaturalKey(ctx, alice.ID, "Milk", "Liter")
	if err != nil || byKey == nil || byKey.ID != it.ID {
		t.Fatalf("get by natural key: %v, %v", byKey, err)
	}
	other, err := s.Items.GetByNaturalKey(ctx, alice.ID, "Milk", "Milliliter")
	if err != nil || other != nil {
		t.Errorf("other unit = %v, %v", other, err)
	}
}

func TestItemNaturalKeyUnique(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")

	in := model.ItemInput{Name: "Rice", Unit: "Gramm"}
	if _, err := s.Items.Create(ctx, alice.ID, in); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Items.Create(ctx, alice.ID, in); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate err = %v, want ErrConflict", err)
	}
	if _, err := s.Items.Create(ctx, bob.ID, in); err != nil {
		t.Errorf("same key, other owner: %v", err)
	}
	in.Unit = "Kilogramm"
	if _, err := s.Items.Create(ctx, alice.ID, in); err != nil {
		t.Errorf("same name, other unit: %v", err)
	}
}

func TestItemListByOwnersAndSearch(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	carol := mustUser(t, s, "carol")

	for _, c := range []struct {
		owner int64
		name  string
	}{
		{alice.ID, "Milk"},
		{alice.ID, "Oat Milk"},
		{bob.ID, "Rice"},
		{carol.ID, "Buttermilk"},
	} {
		if _, err := s.Items.Create(ctx, c.owner, model.ItemInput{Name: c.name}); err != nil {
			t.Fatalf("create %s: %v", c.name, err)
		}
	}

	items, err := s.Items.List(ctx, []int64{alice.ID, bob.ID}, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}

	items, err = s.Items.List(ctx, []int64{alice.ID, bob.ID}, "MILK")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 || items[0].Name != "Milk" || items[1].Name != "Oat Milk" {
		t.Errorf("search = %+v", items)
	}

	items, err = s.Items.List(ctx, nil, "")
	if err != nil || len(items) != 0 {
		t.Errorf("no owners = %v, %v", items, err)
	}
}

func TestItemUpdateAndDelete(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")

	it, err := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Rice", Unit: "Gramm", Quantity: 500})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Pasta", Unit: "Gramm"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.Items.Update(ctx, it.ID, model.ItemInput{Name: "Rice", Unit: "Gramm", Quantity: 250, Icon: "rice.png"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Quantity != 250 || updated.Icon != "rice.png" {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := s.Items.Update(ctx, it.ID, model.ItemInput{Name: "Pasta", Unit: "Gramm"}); !errors.Is(err, ErrConflict) {
		t.Errorf("rename onto existing err = %v, want ErrConflict", err)
	}

	if err := s.Items.Delete(ctx, it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.Items.GetByID(ctx, it.ID)
	if err != nil || got != nil {
		t.Errorf("after delete = %v, %v", got, err)
	}
}
