package economy

// FindInventory returns the index of the inventory line for itemID,
// or -1 when the shop does not stock it.
func (s *Shop) FindInventory(itemID string) int {
	for i := range s.Inventory {
		if s.Inventory[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// UpsertItem adds an inventory line, or replaces the existing line for
// the same item wholesale. A replace does not merge fields: whatever
// the caller passes is what the shop stocks afterwards.
func (s *Shop) UpsertItem(entry InventoryEntry) {
	if i := s.FindInventory(entry.ItemID); i >= 0 {
		s.Inventory[i] = entry
		return
	}
	s.Inventory = append(s.Inventory, entry)
}

// RemoveItem drops the inventory line for itemID. Removing an item the
// shop never stocked is a no-op.
func (s *Shop) RemoveItem(itemID string) {
	for i := range s.Inventory {
		if s.Inventory[i].ItemID == itemID {
			s.Inventory = append(s.Inventory[:i], s.Inventory[i+1:]...)
			return
		}
	}
}

// InventoryPatch carries the optional per-field updates for PatchItem.
// Nil fields are left alone.
type InventoryPatch struct {
	Stock       *int
	BasePrice   *int
	RestockRate *int
	MaxStock    *int
}

// PatchItem updates individual fields of an existing line. Unlike
// UpsertItem it refuses to touch items the shop does not stock.
func (s *Shop) PatchItem(itemID string, patch InventoryPatch) error {
	i := s.FindInventory(itemID)
	if i < 0 {
		return ErrNotInInventory
	}
	e := &s.Inventory[i]
	if patch.Stock != nil {
		e.Stock = *patch.Stock
	}
	if patch.BasePrice != nil {
		e.BasePrice = patch.BasePrice
	}
	if patch.RestockRate != nil {
		e.RestockRate = patch.RestockRate
	}
	if patch.MaxStock != nil {
		e.MaxStock = patch.MaxStock
	}
	return nil
}

// Restock tops up every depletable line by its restock rate, defaulting
// to 1 when no rate is set, capped at MaxStock when set. Unlimited
// lines are left alone. Returns the number of lines that changed.
func (s *Shop) Restock() int {
	changed := 0
	for i := range s.Inventory {
		e := &s.Inventory[i]
		if e.Stock == UnlimitedStock {
			continue
		}
		rate := 1
		if e.RestockRate != nil && *e.RestockRate > 0 {
			rate = *e.RestockRate
		}
		next := e.Stock + rate
		if e.MaxStock != nil && next > *e.MaxStock {
			next = *e.MaxStock
		}
		if next != e.Stock {
			e.Stock = next
			changed++
		}
	}
	return changed
}
