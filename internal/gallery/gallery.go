package gallery

import (
	"time"

	"github.com/google/uuid"
)

// Photo is a progress picture tied to one calendar day of a challenge.
// Date, LocalTimestamp and Timezone come from the client and are stored as
// opaque labels; none of them participate in day-number arithmetic.
type Photo struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	ChallengeID    uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Date           string    `json:"date" db:"date"`
	Filename       string    `json:"filename" db:"filename"`
	ContentType    string    `json:"content_type" db:"content_type"`
	SizeBytes      int       `json:"size_bytes" db:"size_bytes"`
	UploadedAt     time.Time `json:"uploaded_at" db:"uploaded_at"`
	LocalTimestamp string    `json:"local_timestamp,omitempty" db:"local_timestamp"`
	Timezone       string    `json:"timezone,omitempty" db:"timezone"`
	TimezoneOffset int       `json:"timezone_offset" db:"timezone_offset"`
	URL            string    `json:"url"`
}
