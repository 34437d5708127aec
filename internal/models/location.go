package models

import "time"

var exchangeLoc *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// tzdata missing; fall back to the fixed NSE offset
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	exchangeLoc = loc
}

// ExchangeLocation is the NSE/NFO trading timezone.
func ExchangeLocation() *time.Location { return exchangeLoc }
