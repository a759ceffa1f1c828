package models

// NightView is the per-night listing: every recorded slot plus the live total.
type NightView struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
	Holding int     `json:"holding"`
	Admits  int     `json:"total_admits"`
	Left    int     `json:"total_left"`
}
