package economy

import "errors"

// Hard failures. These surface as errors to callers; anything a player
// can cause in normal play is a Result instead.
var (
	ErrShopNotFound   = errors.New("shop not found")
	ErrItemNotFound   = errors.New("item not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrNotInInventory = errors.New("item not in shop inventory")
	ErrUnknownAction  = errors.New("unknown shop action")
	ErrUnauthorized   = errors.New("unauthorized")
)

// Result is the outcome of a buy, sell, or buyback attempt. Expected
// refusals (not enough gold, shop closed) are values, not errors, so a
// refused trade and a storage fault never look alike to callers.
type Result struct {
	OK            bool   `json:"success"`
	Message       string `json:"message"`
	ItemName      string `json:"itemName,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
	GoldSpent     int    `json:"goldSpent,omitempty"`
	GoldGained    int    `json:"goldGained,omitempty"`
	RemainingGold int    `json:"remainingGold,omitempty"`
	BuybackPrice  int    `json:"buybackPrice,omitempty"`
}

// Refuse builds a failed Result with the player-facing message.
func Refuse(msg string) Result {
	return Result{OK: false, Message: msg}
}
