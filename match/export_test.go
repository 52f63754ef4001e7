package match

import "time"

// SetNow overrides the wall clock used for move timing. Test hook.
func (m *Match) SetNow(now func() time.Time) { m.now = now }
