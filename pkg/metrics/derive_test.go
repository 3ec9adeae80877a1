package metrics

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const shotgunPayload = `{
	"health": 83,
	"kills": 6,
	"armor": {"count": 94},
	"ammo": {"clip": {"current": 34}},
	"weapons": {"shotgun": {"current": true, "ammo": "shell"}}
}`

func TestDerive_MissingAmmoFallsBackToZero(t *testing.T) {
	p, err := DecodePayload([]byte(shotgunPayload), "")
	require.NoError(t, err)

	ammo, ok := Number(MetricAmmo, p)
	require.True(t, ok)
	assert.Zero(t, ammo)

	health, _ := Number(MetricHealth, p)
	kills, _ := Number(MetricKills, p)
	armor, _ := Number(MetricArmor, p)
	assert.Equal(t, 83.0, health)
	assert.Equal(t, 6.0, kills)
	assert.Equal(t, 94.0, armor)
	assert.Equal(t, "shotgun", WeaponName(p))
	assert.Equal(t, PayloadVersion, p.Version)
}

func TestDerive_CurrentWeaponAmmo(t *testing.T) {
	p := &Payload{
		Ammo: map[string]AmmoCount{"shell": {Current: 12, Max: 50}},
		Weapons: map[string]Weapon{
			"pistol":  {Available: true, Ammo: "clip"},
			"shotgun": {Available: true, Current: true, Ammo: "shell"},
			"fist":    {Available: true},
		},
	}
	ammo, _ := Number(MetricAmmo, p)
	ammoMax, _ := Number(MetricAmmoMax, p)
	assert.Equal(t, 12.0, ammo)
	assert.Equal(t, 50.0, ammoMax)

	// no current weapon
	p.Weapons["shotgun"] = Weapon{Available: true, Ammo: "shell"}
	ammo, _ = Number(MetricAmmo, p)
	assert.Zero(t, ammo)
	assert.Equal(t, "", WeaponName(p))

	// current weapon without ammo type
	p.Weapons["fist"] = Weapon{Available: true, Current: true}
	ammo, _ = Number(MetricAmmo, p)
	assert.Zero(t, ammo)
}

func TestDerive_Tables(t *testing.T) {
	p := &Payload{
		Ammo:    map[string]AmmoCount{"clip": {Current: 3}, "shell": {Current: 9}},
		Weapons: map[string]Weapon{"pistol": {Available: true}, "rocket": {}},
	}
	ammo, ok := Table(MetricAmmoTable, p)
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"clip": 3, "shell": 9}, ammo)

	weapons, ok := Table(MetricWeapons, p)
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"pistol": 1, "rocket": 0}, weapons)

	_, ok = Table(MetricHealth, p)
	assert.False(t, ok)
}

func TestParseMetric(t *testing.T) {
	for m := range kinds {
		got, err := ParseMetric(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMetric("mana")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestFPSEstimator(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e := NewFPSEstimator(clock)

	_, ok := e.Observe()
	assert.False(t, ok, "first update only records its time")

	clock.Advance(25 * time.Millisecond)
	fps, ok := e.Observe()
	require.True(t, ok)
	assert.InDelta(t, 40.0, fps, 1e-9)

	// same instant: skipped, estimate kept
	fps, ok = e.Observe()
	assert.False(t, ok)
	assert.InDelta(t, 40.0, fps, 1e-9)

	clock.Advance(50 * time.Millisecond)
	fps, ok = e.Observe()
	require.True(t, ok)
	assert.InDelta(t, 20.0, fps, 1e-9)
}

func TestDecodePayload(t *testing.T) {
	raw, err := msgpack.Marshal(&Payload{Health: 50, Weapons: map[string]Weapon{"chaingun": {Current: true, Ammo: "clip"}}})
	require.NoError(t, err)

	p, err := DecodePayload(raw, ContentTypeMsgpack)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Health)
	assert.Equal(t, "chaingun", WeaponName(p))

	_, err = DecodePayload([]byte("{"), "")
	assert.Error(t, err)
	_, err = DecodePayload([]byte("{}"), "text/plain")
	assert.Error(t, err)
}

func TestNATSHandler(t *testing.T) {
	var got []*Payload
	h := natsHandler(func(p *Payload) { got = append(got, p) })

	h(&nats.Msg{Subject: "gsdoom.metrics", Data: []byte(shotgunPayload)})
	h(&nats.Msg{Subject: "gsdoom.metrics", Data: []byte("not json")})

	raw, err := msgpack.Marshal(&Payload{Kills: 3})
	require.NoError(t, err)
	h(&nats.Msg{
		Subject: "gsdoom.metrics",
		Header:  nats.Header{"Content-Type": []string{ContentTypeMsgpack}},
		Data:    raw,
	})

	require.Len(t, got, 2)
	assert.Equal(t, 83, got[0].Health)
	assert.Equal(t, 3, got[1].Kills)
}
