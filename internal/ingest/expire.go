package ingest

import (
	"time"

	"github.com/councilworks/grantscout/internal/models"
)

// Expire partitions records into those still worth showing and the ids
// of those whose deadline has passed. A record expires only when its
// deadline parses as an ISO date strictly before asOf's calendar day;
// a deadline equal to asOf is kept (applications often close end of
// day), and unknown or free-text deadlines are always kept. Running
// Expire twice with the same asOf is a no-op the second time.
func Expire(records []models.GrantRecord, asOf time.Time) (retained []models.GrantRecord, expiredIDs []string) {
	today := asOf.Format(isoDate)
	for _, rec := range records {
		if _, err := time.Parse(isoDate, rec.Deadline); err != nil {
			retained = append(retained, rec)
			continue
		}
		if rec.Deadline < today {
			expiredIDs = append(expiredIDs, rec.ID)
			continue
		}
		retained = append(retained, rec)
	}
	return retained, expiredIDs
}
