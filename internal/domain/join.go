package domain

// Join performs an inner join of the two feeds on event id.
//
// An id present in only one feed is dropped (soft condition, not an error).
// Duplicate ids on either side fan out: each location row pairs with each
// detail row sharing its id, one joined row per cross pairing. Output order
// follows the locations feed; downstream stages impose their own ordering
// where determinism matters.
//
// The two sides never collide on a column: location fields (lat, lon) and
// detail fields (event type, damage) occupy distinct JoinedEvent fields, and
// the shared key is kept once.
func Join(locations []EventLocation, details []EventDetail) []JoinedEvent {
	byID := make(map[string][]EventDetail, len(details))
	for _, d := range details {
		byID[d.EventID] = append(byID[d.EventID], d)
	}

	joined := make([]JoinedEvent, 0, len(locations))
	for _, loc := range locations {
		for _, det := range byID[loc.EventID] {
			joined = append(joined, JoinedEvent{
				EventID:   loc.EventID,
				Lat:       loc.Lat,
				Lon:       loc.Lon,
				EventType: det.EventType,
				DamageRaw: det.DamageProperty,
			})
		}
	}
	return joined
}
