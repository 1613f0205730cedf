package history

import "time"

// SetClock replaces the clock used to timestamp picks.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}
