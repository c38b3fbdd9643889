package models

// StatsSnapshot is the point-in-time view served by the stats endpoint.
// All counters are derived incrementally from store mutations.
type StatsSnapshot struct {
	TotalMessages int64            `json:"total_messages"`
	TotalThreads  int64            `json:"total_threads"`
	TotalUnread   int64            `json:"total_unread"`
	ByPlatform    map[string]int64 `json:"by_platform"`
}
