package store

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/prepper/internal/model"
)

func riceNutrient() model.NutrientInput {
	return model.NutrientInput{
		Description: "carbs",
		Unit:        "g",
		Amount:      70,
		Values: []model.NutrientValueInput{{
			Name: "total",
			Types: []model.NutrientTypeInput{
				{Kind: "per100g", Value: 70},
				{Kind: "perPackage", Value: 350},
			},
		}},
	}
}

// treeCounts reports the value and type rows under the item's nutrient and
// the number of value or type rows whose parent is gone.
func treeCounts(t *testing.T, db *sqlx.DB, itemID int64) (values, types, orphans int) {
	t.Helper()
	if err := db.Get(&values,
		`SELECT COUNT(*) FROM nutrient_values v JOIN nutrients n ON n.id = v.nutrient_id WHERE n.item_id = ?`, itemID); err != nil {
		t.Fatalf("count values: %v", err)
	}
	if err := db.Get(&types,
		`SELECT COUNT(*) FROM nutrient_types t
		 JOIN nutrient_values v ON v.id = t.nutrient_value_id
		 JOIN nutrients n ON n.id = v.nutrient_id
		 WHERE n.item_id = ?`, itemID); err != nil {
		t.Fatalf("count types: %v", err)
	}
	if err := db.Get(&orphans,
		`SELECT
		   (SELECT COUNT(*) FROM nutrient_types WHERE nutrient_value_id NOT IN (SELECT id FROM nutrient_values)) +
		   (SELECT COUNT(*) FROM nutrient_values WHERE nutrient_id NOT IN (SELECT id FROM nutrients)) +
		   (SELECT COUNT(*) FROM nutrients WHERE item_id NOT IN (SELECT id FROM inventory_items))`); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	return
}

func TestNutrientReplaceCreatesTree(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	it, err := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Rice", Unit: "Gramm"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	n, err := s.Nutrients.Replace(ctx, it.ID, alice.ID, riceNutrient())
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n.Description != "carbs" || n.Amount != 70 || n.OwnerID != alice.ID {
		t.Errorf("nutrient = %+v", n)
	}
	if len(n.Values) != 1 || len(n.Values[0].Types) != 2 {
		t.Fatalf("tree = %+v", n.Values)
	}
	if n.Values[0].Types[1].Kind != "perPackage" || n.Values[0].Types[1].Value != 350 {
		t.Errorf("type = %+v", n.Values[0].Types[1])
	}

	values, types, orphans := treeCounts(t, db, it.ID)
	if values != 1 || types != 2 || orphans != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/2/0", values, types, orphans)
	}
}

func TestNutrientReplaceIsWholeSubtree(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	it, _ := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Rice", Unit: "Gramm"})

	first, err := s.Nutrients.Replace(ctx, it.ID, alice.ID, riceNutrient())
	if err != nil {
		t.Fatalf("first replace: %v", err)
	}
	oldValueID := first.Values[0].ID

	green := "#00ff00"
	second, err := s.Nutrients.Replace(ctx, it.ID, alice.ID, model.NutrientInput{
		Description: "fibre",
		Unit:        "g",
		Amount:      3,
		Values: []model.NutrientValueInput{{
			Name:  "total",
			Color: &green,
			Types: []model.NutrientTypeInput{{Kind: "per100g", Value: 3}},
		}},
	})
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("nutrient id changed: %d -> %d", first.ID, second.ID)
	}
	if second.Description != "fibre" || second.Amount != 3 {
		t.Errorf("scalars = %+v", second)
	}
	if len(second.Values) != 1 || second.Values[0].ID == oldValueID {
		t.Errorf("value was not recreated: %+v", second.Values)
	}
	if second.Values[0].Color == nil || *second.Values[0].Color != green {
		t.Errorf("color = %v", second.Values[0].Color)
	}

	values, types, orphans := treeCounts(t, db, it.ID)
	if values != 1 || types != 1 || orphans != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/1/0", values, types, orphans)
	}
}

func TestNutrientReplaceEmptyValues(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	it, _ := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Rice", Unit: "Gramm"})

	if _, err := s.Nutrients.Replace(ctx, it.ID, alice.ID, riceNutrient()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	n, err := s.Nutrients.Replace(ctx, it.ID, alice.ID, model.NutrientInput{Description: "none"})
	if err != nil {
		t.Fatalf("replace empty: %v", err)
	}
	if n == nil || len(n.Values) != 0 {
		t.Errorf("nutrient = %+v", n)
	}
	values, types, orphans := treeCounts(t, db, it.ID)
	if values != 0 || types != 0 || orphans != 0 {
		t.Errorf("counts = %d/%d/%d, want 0/0/0", values, types, orphans)
	}
}

func TestNutrientReplaceRollsBackOnFailure(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	it, _ := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Rice", Unit: "Gramm"})
	if _, err := s.Nutrients.Replace(ctx, it.ID, alice.ID, riceNutrient()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	bad := riceNutrient()
	bad.Description = "broken"
	bad.Values[0].Types = append(bad.Values[0].Types, model.NutrientTypeInput{Kind: "", Value: 1})

	err := NewRunner(db).InTx(ctx, func(tx *Stores) error {
		_, err := tx.Nutrients.Replace(ctx, it.ID, alice.ID, bad)
		return err
	})
	if err == nil {
		t.Fatal("expected empty kind to violate the check constraint")
	}

	n, err := s.Nutrients.GetByItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Description != "carbs" {
		t.Errorf("description = %q, want pre-call %q", n.Description, "carbs")
	}
	values, types, orphans := treeCounts(t, db, it.ID)
	if values != 1 || types != 2 || orphans != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/2/0", values, types, orphans)
	}
}

func TestNutrientDeleteByItem(t *testing.T) {
	s, db := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	it, _ := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Rice", Unit: "Gramm"})
	if _, err := s.Nutrients.Replace(ctx, it.ID, alice.ID, riceNutrient()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := s.Nutrients.DeleteByItem(ctx, it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Items.Delete(ctx, it.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	n, err := s.Nutrients.GetByItem(ctx, it.ID)
	if err != nil || n != nil {
		t.Errorf("after delete = %v, %v", n, err)
	}
	var total int
	if err := db.Get(&total, `SELECT (SELECT COUNT(*) FROM nutrients) + (SELECT COUNT(*) FROM nutrient_values) + (SELECT COUNT(*) FROM nutrient_types)`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 0 {
		t.Errorf("rows left = %d, want 0", total)
	}

	// No tree is fine too.
	if err := s.Nutrients.DeleteByItem(ctx, 12345); err != nil {
		t.Errorf("delete missing: %v", err)
	}
}

func TestNutrientGetByItems(t *testing.T) {
	s, _ := setupTestDB(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	rice, _ := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Rice", Unit: "Gramm"})
	salt, _ := s.Items.Create(ctx, alice.ID, model.ItemInput{Name: "Salt", Unit: "Gramm"})
	if _, err := s.Nutrients.Replace(ctx, rice.ID, alice.ID, riceNutrient()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	trees, err := s.Nutrients.GetByItems(ctx, []int64{rice.ID, salt.ID})
	if err != nil {
		t.Fatalf("get by items: %v", err)
	}
	if trees[rice.ID] == nil || len(trees[rice.ID].Values[0].Types) != 2 {
		t.Errorf("rice tree = %+v", trees[rice.ID])
	}
	if _, ok := trees[salt.ID]; ok {
		t.Error("expected no tree for salt")
	}
}
