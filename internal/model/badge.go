package model

// Badge is a donor achievement derived from completed-donation history.
// Badges are recomputed on demand; any stored copy is a snapshot.
type Badge struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Threshold int    `json:"threshold"`
	Earned    bool   `json:"earned"`
}

// badgeThresholds are evaluated independently, not cumulatively: a donor
// with 10 completed donations holds four badges.
var badgeThresholds = []Badge{
	{Name: "First Donation", Icon: "first-donation", Threshold: 1},
	{Name: "Life Saver", Icon: "life-saver", Threshold: 3},
	{Name: "Hero Donor", Icon: "hero-donor", Threshold: 5},
	{Name: "Champion", Icon: "champion", Threshold: 10},
	{Name: "Legend", Icon: "legend", Threshold: 25},
}

// ComputeBadges derives the badge set for a completed-donation count.
func ComputeBadges(totalCompleted int) []Badge {
	badges := make([]Badge, len(badgeThresholds))
	for i, b := range badgeThresholds {
		b.Earned = totalCompleted >= b.Threshold
		badges[i] = b
	}
	return badges
}
