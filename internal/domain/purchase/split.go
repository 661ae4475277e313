package purchase

import "math"

// Split divides a purchased XP amount into the fan's share and the
// remainder. fanShare = floor(xpAmount * ratio); the remainder absorbs
// rounding so the two shares always sum to xpAmount exactly.
func Split(xpAmount int64, ratio float64) (fanShare, remainderShare int64, err error) {
	if xpAmount <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	if ratio <= 0 || ratio > 1 {
		return 0, 0, ErrInvalidAmount
	}

	fanShare = int64(math.Floor(float64(xpAmount) * ratio))
	if fanShare > xpAmount {
		fanShare = xpAmount
	}
	return fanShare, xpAmount - fanShare, nil
}
