package tender

import "strings"

// PageID addresses one listing page. Pages are dense and start at 1.
type PageID int

// FirstPage is the origin of the listing.
const FirstPage PageID = 1

// Record is one tender listing as extracted from a listing page.
type Record struct {
	Title        string  `json:"title" db:"title"`
	Company      string  `json:"company" db:"company"`
	DateCreated  string  `json:"date_created" db:"date_created"`
	DateDeadline string  `json:"date_deadline" db:"date_deadline"`
	URL          string  `json:"url" db:"url"`
	Category     *string `json:"category" db:"category"`
	Description  *string `json:"description" db:"description"`

	// Page is the listing page the record was found on.
	Page PageID `json:"-" db:"-"`
}

// Key returns the external identifier used for deduplication.
// The tender URL is unique per source; records without one fall back to
// their visible identity.
func (r Record) Key() string {
	if u := strings.TrimSpace(r.URL); u != "" {
		return u
	}
	return strings.Join([]string{r.Title, r.Company, r.DateCreated}, "|")
}
