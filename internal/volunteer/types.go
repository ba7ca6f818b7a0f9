// Package volunteer turns the spreadsheet's positional rows into typed
// club records and runs the request approval lifecycle over them.
package volunteer

// AchievementType is a named activity with a nominal hour value. Its
// RowIndex is valid only until the next add or delete on the sheet; ID
// is the stable key minted at creation (empty on legacy rows).
type AchievementType struct {
	RowIndex  int     `json:"rowIndex"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Hours     float64 `json:"hours"`
	CreatedAt string  `json:"createdAt"`
}

// Request is a volunteer-hour submission. Hours stays 0 and Approved
// false until an admin resolves it; rejection deletes the row outright,
// so no rejected state exists.
type Request struct {
	RowIndex     int     `json:"rowIndex"`
	ID           string  `json:"id"`
	UniversityID string  `json:"universityId"`
	Description  string  `json:"description"`
	Hours        float64 `json:"hours"`
	ImageLink    string  `json:"imageLink"`
	Date         string  `json:"date"`
	Approved     bool    `json:"approved"`
	ApprovedBy   string  `json:"approvedBy"`
}

// Pending reports whether the request still awaits resolution.
func (r Request) Pending() bool { return !r.Approved }

// Member is a read-only roster projection. TotalHours is maintained by
// hand in the sheet and is not reconciled against approved requests.
type Member struct {
	UniversityID string  `json:"universityId"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	Committee    string  `json:"committee"`
	TotalHours   float64 `json:"totalHours"`
	Achievements string  `json:"achievements"`
}
