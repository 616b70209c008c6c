package session

import "time"

// AgeOn returns the age in whole years of someone born on birth, as of the
// calendar date of at. Birth is treated as a calendar date; its clock and
// zone are ignored. People born on 29 February gain a year on 1 March in
// non-leap years.
func AgeOn(birth, at time.Time) int {
	by, bm, bd := birth.Date()
	ay, am, ad := at.Date()

	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	return age
}
