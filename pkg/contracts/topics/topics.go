package topics

const (
	// Preço
	PriceTicks = "price_ticks"

	// Apostas
	WagerPlaced    = "wager_placed"
	WagerResolved  = "wager_resolved"
	WagerCancelled = "wager_cancelled"
)
