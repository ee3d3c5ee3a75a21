package hub

import "fmt"

// RoomID derives the shared room for a pair of participants.
// Both sides compute the same id regardless of who connects first.
func RoomID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("chat_%d_%d", a, b)
}
