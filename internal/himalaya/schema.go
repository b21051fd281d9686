// Package himalaya assembles the peaks/expeditions dataset: it loads the two
// record files, projects and joins them, restricts the result to the most
// climbed peaks, derives the sponsorship flag and computes the chart views.
package himalaya

import "fmt"

// Column lists of the fixed schema.
var (
	PeakColumns = []string{"PEAKID", "PKNAME", "HEIGHTM"}

	ExpeditionColumns = []string{
		"EXPID", "PEAKID", "YEAR", "SEASON", "NATION", "SPONSOR",
		"SUCCESS1", "SUCCESS2", "SUCCESS3", "SUCCESS4",
		"SMTDAYS", "TOTDAYS", "TERMREASON", "HIGHPOINT",
		"TOTMEMBERS", "MDEATHS", "O2USED", "CAMPS",
	}

	CombinedColumns = []string{
		"EXPID", "PEAKID", "PKNAME", "HEIGHTM", "HIGHPOINT",
		"YEAR", "SEASON", "NATION", "SPONSOR",
		"SUCCESS1", "SUCCESS2", "SUCCESS3", "SUCCESS4",
		"SMTDAYS", "TOTDAYS", "TERMREASON",
		"TOTMEMBERS", "MDEATHS", "O2USED", "CAMPS",
	}
)

const (
	// JoinKey links expeditions to peaks.
	JoinKey = "PEAKID"

	// RankKey is the column the top-N restriction counts expeditions by.
	RankKey = "PEAKID"

	// SponsorColumn is turned from free text into a has-sponsor flag.
	SponsorColumn = "SPONSOR"

	// SeasonNameColumn carries the display name of SEASON in the
	// per-peak-season view.
	SeasonNameColumn = "SeasonName"
)

// ColumnDoc describes one column of the combined table.
type ColumnDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ColumnDocs documents CombinedColumns, in the same order.
var ColumnDocs = []ColumnDoc{
	{"EXPID", "Unique expedition ID."},
	{"PEAKID", "Code used to identify the mountain peak."},
	{"PKNAME", "Name of the peak (e.g., Everest, Lhotse)."},
	{"HEIGHTM", "Elevation of the peak in meters."},
	{"HIGHPOINT", "The highest altitude reached during the expedition."},
	{"YEAR", "Year the expedition took place."},
	{"SEASON", "Season of the expedition (see seasons)."},
	{"NATION", "Nationality of the expedition team."},
	{"SPONSOR", "Whether the expedition had a named sponsor (true/false)."},
	{"SUCCESS1", "Climbing success code, route 1."},
	{"SUCCESS2", "Climbing success code, route 2."},
	{"SUCCESS3", "Climbing success code, route 3."},
	{"SUCCESS4", "Climbing success code, route 4."},
	{"SMTDAYS", "Days taken to reach the summit."},
	{"TOTDAYS", "Total duration of the expedition."},
	{"TERMREASON", "Reason the expedition ended (e.g., summit, accident, bad weather)."},
	{"TOTMEMBERS", "Number of team members."},
	{"MDEATHS", "Number of member deaths."},
	{"O2USED", "Whether supplemental oxygen was used."},
	{"CAMPS", "Number of camps above basecamp."},
}

// Seasons maps SEASON codes to display names.
var Seasons = []string{"Unknown", "Spring", "Summer", "Autumn", "Winter"}

// SeasonName returns the display name of a SEASON cell. Codes outside 0..4
// and non-numeric values are reported as "Unknown" plus the raw value.
func SeasonName(v any) string {
	var code int64 = -1
	switch n := v.(type) {
	case int64:
		code = n
	case int:
		code = int64(n)
	case float64:
		if n == float64(int64(n)) {
			code = int64(n)
		}
	case nil:
		return Seasons[0]
	}
	if code >= 0 && code < int64(len(Seasons)) {
		return Seasons[code]
	}
	return fmt.Sprintf("Unknown (%v)", v)
}
