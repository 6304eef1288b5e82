package store

// Settings is the locally persisted copy of the remote display
// settings singleton.
type Settings struct {
	RefreshIntervalMinutes int `json:"refresh_interval_minutes"`
}

// Schedule is the locally persisted copy of the remote screen on/off
// window. Start and End are wall-clock times in "15:04" form.
type Schedule struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}
