package invalidate

import "time"

// Snapshots are cut once a day at 01:00 UTC. A timestamp before the cut
// belongs to the previous batch day.
const batchHourUTC = 1

// BatchBefore returns the batch boundary at or before t.
func BatchBefore(t time.Time) time.Time {
	t = t.UTC()
	if t.Hour() < batchHourUTC {
		t = t.AddDate(0, 0, -1)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), batchHourUTC, 0, 0, 0, time.UTC)
}

// BatchAfter returns the first batch boundary strictly after the one
// covering t.
func BatchAfter(t time.Time) time.Time {
	return BatchBefore(t).AddDate(0, 0, 1)
}

// LastBatch returns the most recent batch boundary as of now.
func LastBatch(now time.Time) time.Time {
	return BatchBefore(now)
}
