package cache

import (
	"fmt"
)

// ItemPriceKey keys the cached price-API response for one item.
func ItemPriceKey(itemID int) string {
	return fmt.Sprintf("price:item:%d", itemID)
}
