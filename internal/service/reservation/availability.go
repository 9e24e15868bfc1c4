package reservation

import (
	"github.com/kirinyoku/tixfront/internal/cart"
	"github.com/kirinyoku/tixfront/internal/domain"
)

// Selectable reports how many more units of cat can be added to the cart.
// A non-zero tariffID narrows the held quantity to that tariff's key, while
// the category total across all tariffs stays bounded by availability. A
// limit group with a remainder caps the whole event's cart count, not only
// the group's own items. The result is never negative.
func Selectable(eventID int64, cat domain.Category, group domain.LimitGroup, tariffID int64, snap cart.Snapshot) int {
	remaining := cat.Availability - snap.Quantity(domain.CategoryKey(cat.ID, tariffID))

	if tariffID != 0 {
		remaining = min(remaining, cat.Availability-snap.CategoryTotal(eventID, cat.ID))
	}

	if group.Remainder > 0 {
		remaining = min(remaining, group.Remainder-snap.EventCount(eventID))
	}

	return max(remaining, 0)
}
