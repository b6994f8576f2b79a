package types

// Summary is the dashboard projection over the inventory tables.
type Summary struct {
	TotalAssets       int `json:"total_assets"`
	DamagedAssets     int `json:"damaged_assets"`
	GoodAssets        int `json:"good_assets"`
	OpenDamageReports int `json:"open_damage_reports"`
	TotalRooms        int `json:"total_rooms"`
	TotalUsers        int `json:"total_users"`
}
