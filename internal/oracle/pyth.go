package oracle

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/fix"
)

type VerificationLevel uint8

const (
	VerificationPartial VerificationLevel = iota
	VerificationFull
)

func (v VerificationLevel) String() string {
	if v == VerificationFull {
		return "full"
	}
	return "partial"
}

func (v VerificationLevel) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *VerificationLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "full":
		*v = VerificationFull
	case "partial":
		*v = VerificationPartial
	default:
		return fmt.Errorf("unknown verification level %q", b)
	}
	return nil
}

// PriceFeed is a raw pull-oracle price update.
type PriceFeed struct {
	Price        int64             `json:"price" yaml:"price"`
	Conf         uint64            `json:"conf" yaml:"conf"`
	Exponent     int32             `json:"exponent" yaml:"exponent"`
	PublishTime  int64             `json:"publish_time" yaml:"publish_time"`
	PostedSlot   uint64            `json:"posted_slot" yaml:"posted_slot"`
	Verification VerificationLevel `json:"verification" yaml:"verification"`
}

// Query validates a feed against the clock and returns its N9 price.
// Gates run in a fixed order: verification, publish time, posted slot,
// price sign and exponent, confidence.
func Query(c clock.Clock, feed PriceFeed, cfg Config) (OraclePrice, error) {
	if feed.Verification != VerificationFull {
		return OraclePrice{}, ErrVerificationLevel
	}
	if err := validatePublishTime(feed.PublishTime, cfg.IntervalSecs, c.UnixTimestamp()); err != nil {
		return OraclePrice{}, err
	}
	if err := validatePostedSlot(feed.PostedSlot, cfg.IntervalSecs, c.Slot()); err != nil {
		return OraclePrice{}, err
	}
	if feed.Price <= 0 {
		return OraclePrice{}, ErrNegativePrice
	}
	spot, err := Normalize(uint64(feed.Price), feed.Exponent)
	if err != nil {
		return OraclePrice{}, err
	}
	conf, err := Normalize(feed.Conf, feed.Exponent)
	if err != nil {
		return OraclePrice{}, err
	}
	if err := validateConf(spot, conf, cfg.ConfTolerance); err != nil {
		return OraclePrice{}, err
	}
	return OraclePrice{Spot: spot, Conf: conf}, nil
}

// QueryRange validates a feed and returns spot +/- conf.
func QueryRange(c clock.Clock, feed PriceFeed, cfg Config) (PriceRange[fix.N9], error) {
	p, err := Query(c, feed, cfg)
	if err != nil {
		return PriceRange[fix.N9]{}, err
	}
	return p.Range()
}

// Normalize rescales a raw price with exponent -2 through -9 to N9.
func Normalize(raw uint64, exp int32) (fix.UFix64[fix.N9], error) {
	if exp > -2 || exp < -9 {
		return fix.UFix64[fix.N9]{}, ErrExponent
	}
	p, _ := fix.Pow10(int(9 + exp))
	if raw > 0 && raw > ^uint64(0)/p {
		return fix.UFix64[fix.N9]{}, ErrExponent
	}
	return fix.New[fix.N9](raw * p), nil
}

// SlotInterval is the number of 400ms slots in the given number of seconds.
func SlotInterval(secs uint64) uint64 {
	return secs * 100 / 40
}

func validatePublishTime(publish int64, interval uint64, now int64) error {
	if publish <= 0 || now <= 0 {
		return ErrNegativeTime
	}
	deadline := uint64(publish) + interval
	if deadline < uint64(publish) {
		deadline = ^uint64(0)
	}
	if deadline < uint64(now) {
		return ErrOutdated
	}
	return nil
}

func validatePostedSlot(posted, interval, current uint64) error {
	if posted > current || current-posted > SlotInterval(interval) {
		return ErrSlotInvalid
	}
	return nil
}

func validateConf(price, conf, tolerance fix.UFix64[fix.N9]) error {
	ratio, err := fix.MulDivFloor(conf, fix.One[fix.N9](), price)
	if err != nil || ratio.Gt(tolerance) {
		return ErrConfidence
	}
	return nil
}
