package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrUnknownMetric is returned for a metric name that cannot be derived.
var ErrUnknownMetric = errors.New("metrics: unknown metric")

// Metric names a value derived from a payload.
type Metric string

const (
	MetricHealth    Metric = "health"
	MetricKills     Metric = "kills"
	MetricArmor     Metric = "armor"
	MetricArmorType Metric = "armorType"
	MetricAmmo      Metric = "ammo"
	MetricAmmoMax   Metric = "ammoMax"
	MetricWeapon    Metric = "weapon"
	MetricFPS       Metric = "fps"
	MetricAmmoTable Metric = "ammoTable"
	MetricWeapons   Metric = "weapons"
)

// Kind is the shape of a derived value.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindTable
)

var kinds = map[Metric]Kind{
	MetricHealth:    KindNumber,
	MetricKills:     KindNumber,
	MetricArmor:     KindNumber,
	MetricArmorType: KindNumber,
	MetricAmmo:      KindNumber,
	MetricAmmoMax:   KindNumber,
	MetricFPS:       KindNumber,
	MetricWeapon:    KindString,
	MetricAmmoTable: KindTable,
	MetricWeapons:   KindTable,
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if _, ok := kinds[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// Kind returns the shape of m.
func (m Metric) Kind() Kind { return kinds[m] }

// Number derives a numeric metric from p. It reports false for metrics that
// are not plain numbers or need state, like fps.
func Number(m Metric, p *Payload) (float64, bool) {
	switch m {
	case MetricHealth:
		return float64(p.Health), true
	case MetricKills:
		return float64(p.Kills), true
	case MetricArmor:
		return float64(p.Armor.Count), true
	case MetricArmorType:
		return float64(p.Armor.Type), true
	case MetricAmmo:
		return float64(p.CurrentAmmo().Current), true
	case MetricAmmoMax:
		return float64(p.CurrentAmmo().Max), true
	}
	return 0, false
}

// WeaponName is the name of the current weapon, or "" when none is selected.
func WeaponName(p *Payload) string {
	name, _, _ := p.CurrentWeapon()
	return name
}

// Table derives a multi-column metric from p, keyed by column name.
func Table(m Metric, p *Payload) (map[string]float64, bool) {
	switch m {
	case MetricAmmoTable:
		out := make(map[string]float64, len(p.Ammo))
		for name, a := range p.Ammo {
			out[name] = float64(a.Current)
		}
		return out, true
	case MetricWeapons:
		out := make(map[string]float64, len(p.Weapons))
		for name, w := range p.Weapons {
			if w.Available {
				out[name] = 1
			} else {
				out[name] = 0
			}
		}
		return out, true
	}
	return nil, false
}

// FPSEstimator turns consecutive update timestamps into a frame rate. The
// first update only records its time. An update that does not advance the
// clock is ignored and keeps the previous estimate.
type FPSEstimator struct {
	clock clockwork.Clock
	last  time.Time
	fps   float64
}

// NewFPSEstimator returns an estimator reading clock. A nil clock is the
// real clock.
func NewFPSEstimator(clock clockwork.Clock) *FPSEstimator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FPSEstimator{clock: clock}
}

// Observe records an update and returns the estimate it produced. ok is
// false when the update did not produce a new estimate.
func (e *FPSEstimator) Observe() (fps float64, ok bool) {
	now := e.clock.Now()
	if e.last.IsZero() {
		e.last = now
		return 0, false
	}
	elapsed := now.Sub(e.last)
	if elapsed <= 0 {
		return e.fps, false
	}
	e.last = now
	e.fps = float64(time.Second) / float64(elapsed)
	return e.fps, true
}
