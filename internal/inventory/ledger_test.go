package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tableside/internal/apperr"
	"github.com/mmynk/tableside/internal/models"
)

type fakeRecipes map[string][]models.RecipeEntry

func (f fakeRecipes) RecipeOf(_ context.Context, productID string) ([]models.RecipeEntry, error) {
	recipe, ok := f[productID]
	if !ok {
		return nil, apperr.ErrProductNotFound
	}
	return recipe, nil
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(product, ingredient, perUnit string) models.RecipeEntry {
	return models.RecipeEntry{ProductID: product, IngredientID: ingredient, QuantityPerUnit: qty(perUnit)}
}

func ingredient(id, quantity, threshold string) models.Ingredient {
	return models.Ingredient{ID: id, Name: id, Unit: "g", Quantity: qty(quantity), MinThreshold: qty(threshold)}
}

func newTestLedger(t *testing.T, recipes fakeRecipes, ingredients ...models.Ingredient) *Ledger {
	t.Helper()
	l := New(recipes)
	if err := l.Load(ingredients); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return l
}

func stockOf(t *testing.T, l *Ledger, id string) decimal.Decimal {
	t.Helper()
	ing, err := l.Stock(id)
	if err != nil {
		t.Fatalf("Stock(%s) failed: %v", id, err)
	}
	return ing.Quantity
}

func TestConsumeForCompletion(t *testing.T) {
	recipes := fakeRecipes{
		"burger": {entry("burger", "bun", "1"), entry("burger", "beef", "150")},
	}
	l := newTestLedger(t, recipes, ingredient("bun", "10", "2"), ingredient("beef", "1000", "300"))

	txs, err := l.ConsumeForCompletion(context.Background(), "burger", 2, "order-1")
	if err != nil {
		t.Fatalf("ConsumeForCompletion failed: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(txs))
	}
	if got := stockOf(t, l, "bun"); !got.Equal(qty("8")) {
		t.Errorf("bun = %s, want 8", got)
	}
	if got := stockOf(t, l, "beef"); !got.Equal(qty("700")) {
		t.Errorf("beef = %s, want 700", got)
	}

	// Sorted by ingredient ID.
	if txs[0].IngredientID != "beef" || !txs[0].Delta.Equal(qty("-300")) || !txs[0].Balance.Equal(qty("700")) {
		t.Errorf("Unexpected beef transaction %+v", txs[0])
	}
	for _, tx := range txs {
		if tx.OrderID != "order-1" || tx.ProductID != "burger" || tx.Kind != models.StockConsume {
			t.Errorf("Transaction not linked to the order: %+v", tx)
		}
	}
	if got := l.Transactions("order-1"); len(got) != 2 {
		t.Errorf("Transactions(order-1) = %d, want 2", len(got))
	}
}

func TestConsumeForCompletion_AllOrNothing(t *testing.T) {
	recipes := fakeRecipes{
		"pasta": {entry("pasta", "a-noodles", "100"), entry("pasta", "b-sauce", "80")},
	}
	l := newTestLedger(t, recipes, ingredient("a-noodles", "500", "0"), ingredient("b-sauce", "50", "0"))

	_, err := l.ConsumeForCompletion(context.Background(), "pasta", 1, "order-1")
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got %v", err)
	}

	var short *apperr.InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("Expected *InsufficientStockError, got %T", err)
	}
	if short.IngredientID != "b-sauce" || !short.Needed.Equal(qty("80")) || !short.Available.Equal(qty("50")) {
		t.Errorf("Unexpected shortfall %+v", short)
	}
	if !short.Deficit().Equal(qty("30")) {
		t.Errorf("Deficit = %s, want 30", short.Deficit())
	}

	if got := stockOf(t, l, "a-noodles"); !got.Equal(qty("500")) {
		t.Errorf("a-noodles changed to %s after failed consumption", got)
	}
	if len(l.Transactions("order-1")) != 0 {
		t.Error("Expected no transactions after failed consumption")
	}
}

func TestConsumeForCompletion_MergesRepeatedIngredients(t *testing.T) {
	recipes := fakeRecipes{
		"combo": {entry("combo", "cheese", "20"), entry("combo", "cheese", "30")},
	}
	l := newTestLedger(t, recipes, ingredient("cheese", "120", "0"))

	_, err := l.ConsumeForCompletion(context.Background(), "combo", 3, "order-1")
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("Expected merged requirement of 150 to fail, got %v", err)
	}

	txs, err := l.ConsumeForCompletion(context.Background(), "combo", 2, "order-1")
	if err != nil {
		t.Fatalf("ConsumeForCompletion failed: %v", err)
	}
	if len(txs) != 1 || !txs[0].Delta.Equal(qty("-100")) {
		t.Errorf("Expected one transaction of -100, got %+v", txs)
	}
}

func TestConsumeForCompletion_Errors(t *testing.T) {
	recipes := fakeRecipes{
		"soup":  {entry("soup", "missing", "1")},
		"water": {},
	}
	l := newTestLedger(t, recipes)

	tests := []struct {
		name      string
		productID string
		quantity  int
		wantErr   error
	}{
		{name: "zero quantity", productID: "soup", quantity: 0, wantErr: apperr.ErrInvalidQuantity},
		{name: "unknown product", productID: "nope", quantity: 1, wantErr: apperr.ErrProductNotFound},
		{name: "unknown ingredient", productID: "soup", quantity: 1, wantErr: apperr.ErrIngredientNotFound},
		{name: "no recipe", productID: "water", quantity: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := l.ConsumeForCompletion(context.Background(), tt.productID, tt.quantity, "order-1")
			if tt.wantErr == nil {
				if err != nil || len(txs) != 0 {
					t.Errorf("Expected no-op, got %v, %v", txs, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConsumeForCompletion_TrainingMode(t *testing.T) {
	recipes := fakeRecipes{"coffee": {entry("coffee", "beans", "18")}}
	l := newTestLedger(t, recipes, ingredient("beans", "10", "0"))
	l.SetTrainingMode(true)

	txs, err := l.ConsumeForCompletion(context.Background(), "coffee", 5, "order-1")
	if err != nil {
		t.Fatalf("Training consumption failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("Expected no transactions in training mode, got %d", len(txs))
	}
	if got := stockOf(t, l, "beans"); !got.Equal(qty("10")) {
		t.Errorf("beans = %s, want 10", got)
	}

	l.SetTrainingMode(false)
	if _, err := l.ConsumeForCompletion(context.Background(), "coffee", 1, "order-1"); !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Errorf("Expected insufficient stock after leaving training mode, got %v", err)
	}
}

func TestConsumeForCompletion_ConcurrentOverdraw(t *testing.T) {
	recipes := fakeRecipes{
		"steak": {entry("steak", "beef", "300"), entry("steak", "salt", "1")},
		"stew":  {entry("stew", "salt", "2"), entry("stew", "beef", "300")},
	}
	// Enough beef for exactly 10 of the 40 attempted completions.
	l := newTestLedger(t, recipes, ingredient("beef", "3000", "0"), ingredient("salt", "1000", "0"))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < 40; i++ {
		product := "steak"
		if i%2 == 1 {
			product = "stew"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ConsumeForCompletion(context.Background(), product, 1, "order-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrInsufficientStock):
				short++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 || short != 30 {
		t.Errorf("succeeded=%d short=%d, want 10 and 30", succeeded, short)
	}
	if got := stockOf(t, l, "beef"); !got.IsZero() {
		t.Errorf("beef = %s, want 0", got)
	}
	if got := len(l.Transactions("order-1")); got != 20 {
		t.Errorf("Transactions = %d, want 20", got)
	}
}

func TestRegister(t *testing.T) {
	l := New(fakeRecipes{})

	if err := l.Register(ingredient("milk", "-1", "0")); !errors.Is(err, apperr.ErrInvalidQuantity) {
		t.Errorf("Expected invalid quantity, got %v", err)
	}
	if err := l.Register(ingredient("milk", "5", "1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := l.Register(ingredient("milk", "7", "1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := stockOf(t, l, "milk"); !got.Equal(qty("7")) {
		t.Errorf("milk = %s, want 7", got)
	}
	if _, err := l.Stock("cream"); !errors.Is(err, apperr.ErrIngredientNotFound) {
		t.Errorf("Expected ingredient not found, got %v", err)
	}
}

func TestLowStockReport(t *testing.T) {
	l := newTestLedger(t, fakeRecipes{"fries": {entry("fries", "potato", "200")}},
		ingredient("potato", "1000", "500"),
		ingredient("oil", "100", "400"),
		ingredient("salt", "50", "50"),
		ingredient("ketchup", "10", "200"),
	)

	report := l.LowStockReport()

	// Changes after the report is taken are not reflected in it.
	if _, err := l.ConsumeForCompletion(context.Background(), "fries", 5, "order-1"); err != nil {
		t.Fatalf("ConsumeForCompletion failed: %v", err)
	}

	var got []string
	for item := range report {
		got = append(got, item.IngredientID)
	}
	want := []string{"oil", "ketchup", "salt"}
	if len(got) != len(want) {
		t.Fatalf("Report = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Report[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	var latest []models.LowStockItem
	for item := range l.LowStockReport() {
		latest = append(latest, item)
	}
	if len(latest) != 4 || latest[0].IngredientID != "potato" || !latest[0].Deficit.Equal(qty("500")) {
		t.Errorf("Expected potato to lead the new report, got %+v", latest)
	}
}
