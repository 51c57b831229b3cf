// Package session decides which trading session a wall-clock instant
// falls into and what kind of order that session allows.
package session

import "time"

type Session string

const (
	Regular    Session = "REGULAR"
	PreMarket  Session = "PRE_MARKET"
	AfterHours Session = "AFTER_HOURS"
	Overnight  Session = "OVERNIGHT"
	Closed     Session = "CLOSED"
)

// Config carries the trading-window switches. Regular hours are always
// tradable; the flags only open the extra windows.
type Config struct {
	ExtendedHours bool
	Overnight     bool
}

// Clock maps instants to sessions in a fixed exchange time zone.
type Clock struct {
	loc *time.Location
}

func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Session boundaries, minutes after midnight exchange time.
const (
	preMarketOpen  = 4 * 60
	regularOpen    = 9*60 + 30
	regularClose   = 16 * 60
	afterHoursEnd  = 20 * 60
	overnightStart = 20 * 60
)

// Current classifies now. The overnight window runs 20:00-04:00 and is
// only valid into a trading day: Monday-Thursday evenings and
// Monday-Friday early mornings.
func (c *Clock) Current(now time.Time) Session {
	t := now.In(c.loc)
	wd := t.Weekday()
	mins := t.Hour()*60 + t.Minute()
	weekday := wd >= time.Monday && wd <= time.Friday

	switch {
	case weekday && mins >= regularOpen && mins < regularClose:
		return Regular
	case weekday && mins >= preMarketOpen && mins < regularOpen:
		return PreMarket
	case weekday && mins >= regularClose && mins < afterHoursEnd:
		return AfterHours
	case mins >= overnightStart && wd >= time.Monday && wd <= time.Thursday:
		return Overnight
	case mins < preMarketOpen && weekday:
		return Overnight
	default:
		return Closed
	}
}

// IsTradable applies the configured trading windows to a session.
func IsTradable(s Session, cfg Config) bool {
	switch s {
	case Regular:
		return true
	case PreMarket, AfterHours:
		return cfg.ExtendedHours
	case Overnight:
		return cfg.Overnight
	default:
		return false
	}
}

// RequiresLimit reports whether orders in this session must carry a
// limit price. Everything outside regular hours does.
func RequiresLimit(s Session) bool {
	return s != Regular
}
