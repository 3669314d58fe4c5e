package inventory

import (
	"iter"
	"sort"

	"github.com/mmynk/tableside/internal/models"
)

// LowStockReport returns the ingredients at or below their minimum
// threshold, largest deficit first. The report is taken when
// LowStockReport is called; later stock changes do not show up in it.
func (l *Ledger) LowStockReport() iter.Seq[models.LowStockItem] {
	l.mu.RLock()
	stocks := make([]*stock, 0, len(l.stocks))
	for _, s := range l.stocks {
		stocks = append(stocks, s)
	}
	l.mu.RUnlock()

	var items []models.LowStockItem
	for _, s := range stocks {
		s.mu.Lock()
		ing := s.ing
		s.mu.Unlock()

		if ing.Quantity.GreaterThan(ing.MinThreshold) {
			continue
		}
		items = append(items, models.LowStockItem{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Quantity:     ing.Quantity,
			MinThreshold: ing.MinThreshold,
			Deficit:      ing.MinThreshold.Sub(ing.Quantity),
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if c := items[i].Deficit.Cmp(items[j].Deficit); c != 0 {
			return c > 0
		}
		return items[i].IngredientID < items[j].IngredientID
	})

	return func(yield func(models.LowStockItem) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}
