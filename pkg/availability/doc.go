// Package availability computes when a group of users is free.
//
// GetWindows lays a slot grid of ceil(range/slot) cells over the requested
// range. Busy time comes from two sources loaded concurrently: calendar events
// assigned to the users (through calendar.Source) and externally synchronized
// busy cache records (through CacheStore). Every interval is clipped to the
// range and marks the cells it overlaps; the first interval to reach a cell is
// the one reported for it. Consecutive busy cells of one user that share a
// source, reference and label collapse into a single conflict interval, and
// consecutive cells free for every user collapse into windows.
//
//	res, err := engine.GetWindows(ctx, availability.Query{
//		OrganizationID: "org-1",
//		UserIDs:        []string{"alice", "bob"},
//		RangeStart:     start,
//		RangeEnd:       start.Add(2 * time.Hour),
//		SlotMinutes:    30,
//	})
//
// The busy cache is written by sync jobs through UpdateCache, which replaces
// the user's record as a whole. MemoryCacheStore serves tests and single
// process deployments; RedisCacheStore keeps one hash per organization.
package availability
