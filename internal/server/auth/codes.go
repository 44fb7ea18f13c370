package auth

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// CodeIssuer issues and checks six digit verification and reset codes.
type CodeIssuer struct {
	ttl time.Duration
	now func() time.Time
}

func NewCodeIssuer(ttl time.Duration) *CodeIssuer {
	return &CodeIssuer{ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (c *CodeIssuer) WithClock(now func() time.Time) *CodeIssuer {
	c.now = now
	return c
}

// Issue returns a uniformly random code in [100000, 999999] and its expiry.
func (c *CodeIssuer) Issue() (int, time.Time, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return 0, time.Time{}, err
	}
	return codeMin + int(n.Int64()), c.now().Add(c.ttl), nil
}

// Validate checks submitted against the stored code. Wrong, missing and
// expired codes all yield common.ErrInvalidOrExpiredCode.
func (c *CodeIssuer) Validate(stored *int, expiresAt *time.Time, submitted int) error {
	if stored == nil || expiresAt == nil {
		return common.ErrInvalidOrExpiredCode
	}
	if *stored != submitted {
		return common.ErrInvalidOrExpiredCode
	}
	if c.now().After(*expiresAt) {
		return common.ErrInvalidOrExpiredCode
	}
	return nil
}
