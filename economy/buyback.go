package economy

import (
	"github.com/google/uuid"
)

// AppendBuyback records a sold item as reclaimable. totalSalePrice is
// what the shop paid for the whole stack; the buyback price marks it
// up by the shop's modifier. Returns the new entry.
func (s *Shop) AppendBuyback(itemID, playerID string, totalSalePrice int, nowMs int64) BuybackEntry {
	entry := BuybackEntry{
		ID:             uuid.NewString(),
		ItemID:         itemID,
		SoldByPlayerID: playerID,
		SoldAtMs:       nowMs,
		BuybackPrice:   BuybackPrice(totalSalePrice, s.BuybackModifier),
	}
	if s.BuybackDurationMin > 0 {
		entry.ExpiresAtMs = nowMs + int64(s.BuybackDurationMin)*60*1000
	}
	s.BuybackInventory = append(s.BuybackInventory, entry)
	return entry
}

// ValidBuybacks returns the live offers for one player, oldest first.
// Only the seller may reclaim an entry.
func (s *Shop) ValidBuybacks(playerID string, nowMs int64) []BuybackEntry {
	var out []BuybackEntry
	for _, e := range s.BuybackInventory {
		if e.SoldByPlayerID == playerID && !e.Expired(nowMs) {
			out = append(out, e)
		}
	}
	return out
}

// FindBuyback locates an offer by its stable id. Positional indexes
// shift whenever entries expire, so ids are the only safe handle.
func (s *Shop) FindBuyback(id string) (BuybackEntry, bool) {
	for _, e := range s.BuybackInventory {
		if e.ID == id {
			return e, true
		}
	}
	return BuybackEntry{}, false
}

// BuybackAt resolves a positional index against the player's live
// offers, for callers still addressing entries by list position. The
// index counts only that player's unexpired entries.
func (s *Shop) BuybackAt(playerID string, index int, nowMs int64) (BuybackEntry, bool) {
	valid := s.ValidBuybacks(playerID, nowMs)
	if index < 0 || index >= len(valid) {
		return BuybackEntry{}, false
	}
	return valid[index], true
}

// RemoveBuyback deletes the offer with the given id, reporting whether
// it existed.
func (s *Shop) RemoveBuyback(id string) bool {
	for i := range s.BuybackInventory {
		if s.BuybackInventory[i].ID == id {
			s.BuybackInventory = append(s.BuybackInventory[:i], s.BuybackInventory[i+1:]...)
			return true
		}
	}
	return false
}

// PurgeExpiredBuybacks drops lapsed offers and returns how many were
// removed.
func (s *Shop) PurgeExpiredBuybacks(nowMs int64) int {
	kept := s.BuybackInventory[:0]
	removed := 0
	for _, e := range s.BuybackInventory {
		if e.Expired(nowMs) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.BuybackInventory = kept
	return removed
}
