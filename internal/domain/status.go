package domain

// BotStatus is a summary of the bot's current operational state.
type BotStatus struct {
	Mode           string   `json:"mode"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	ActiveSessions int      `json:"active_sessions"`
	PopularSports  []string `json:"popular_sports"`
	LastScanAt     string   `json:"last_scan_at,omitempty"`
	LastScanCount  int      `json:"last_scan_count"`
}
