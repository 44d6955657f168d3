package edge

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/neuroglyph/git-mind-sub001/ports"
)

// NewULID mints a 26-char Crockford-Base32 ULID: a 48-bit millisecond
// timestamp plus 80 bits of randomness drawn from the crypto port.
func NewULID(now time.Time, random ports.Random) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), random)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
