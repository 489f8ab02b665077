// Package policy holds the confirmation and cancellation rules applied to
// bookings over their lifecycle.
package policy

import (
	"crypto/rand"
	"math/big"

	"tablebook/internal/models"
	"tablebook/internal/settings"
)

// codeAlphabet excludes ambiguous characters (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ConfirmationPolicy maps reservation types to their initial status.
type ConfirmationPolicy struct {
	autoConfirm map[models.ReservationType]bool
}

// NewConfirmationPolicy builds the policy from resolved settings. Unset
// per-type flags fall back to the hardcoded defaults (dining auto-confirms,
// omakase does not).
func NewConfirmationPolicy(cfg settings.ConfirmationSettings) *ConfirmationPolicy {
	defaults := settings.DefaultConfirmation()
	resolve := func(v, def *bool) bool {
		if v != nil {
			return *v
		}
		return *def
	}
	return &ConfirmationPolicy{
		autoConfirm: map[models.ReservationType]bool{
			models.TypeOmakase: resolve(cfg.OmakaseAutoConfirm, defaults.OmakaseAutoConfirm),
			models.TypeDining:  resolve(cfg.DiningAutoConfirm, defaults.DiningAutoConfirm),
		},
	}
}

// AutoConfirm reports whether new bookings of the type start confirmed.
func (p *ConfirmationPolicy) AutoConfirm(typ models.ReservationType) bool {
	return p.autoConfirm[typ]
}

// InitialStatus resolves the status a new booking is created with and, for
// auto-confirmed types, issues the confirmation code. The code is empty for
// pending bookings; one is issued later on the first manual confirmation.
func (p *ConfirmationPolicy) InitialStatus(typ models.ReservationType) (string, string) {
	if p.AutoConfirm(typ) {
		return models.StatusConfirmed, NewConfirmationCode()
	}
	return models.StatusPending, ""
}

// NewConfirmationCode returns an 8-character collision-negligible token.
func NewConfirmationCode() string {
	buf := make([]byte, models.ConfirmationCodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf)
}
