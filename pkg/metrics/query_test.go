package metrics

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamrankamilli/gsdoom/pkg/frame"
)

type seriesSink struct{ got []*frame.Series }

func (s *seriesSink) push(f *frame.Series) { s.got = append(s.got, f) }

func (s *seriesSink) last(t *testing.T) *frame.Series {
	t.Helper()
	require.NotEmpty(t, s.got)
	return s.got[len(s.got)-1]
}

func TestQuery_TrailingSeries(t *testing.T) {
	hub := NewHub()
	clock := clockwork.NewFakeClock()
	var sink seriesSink

	q, err := NewQuery(hub, MetricHealth, QueryOptions{RefID: "B", Capacity: 3, Clock: clock}, sink.push)
	require.NoError(t, err)
	q.Start()

	for i := 1; i <= 5; i++ {
		clock.Advance(time.Second)
		hub.Publish(&Payload{Health: i * 10})
	}

	require.Len(t, sink.got, 5)
	s := sink.last(t)
	assert.Equal(t, "health", s.Name)
	assert.Equal(t, "B", s.RefID)
	require.Len(t, s.Fields, 1)
	assert.Equal(t, []float64{30, 40, 50}, s.Fields[0].Numbers)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Time[0].Before(s.Time[2]))
}

func TestQuery_WeaponIsString(t *testing.T) {
	hub := NewHub()
	var sink seriesSink
	q, err := NewQuery(hub, MetricWeapon, QueryOptions{}, sink.push)
	require.NoError(t, err)
	q.Start()

	hub.Publish(&Payload{Weapons: map[string]Weapon{"plasma": {Current: true}}})
	hub.Publish(&Payload{})

	s := sink.last(t)
	require.Len(t, s.Fields, 1)
	assert.True(t, s.Fields[0].IsString())
	assert.Equal(t, []string{"plasma", ""}, s.Fields[0].Strings)
}

func TestQuery_TableColumnsFollowKeys(t *testing.T) {
	hub := NewHub()
	var sink seriesSink
	q, err := NewQuery(hub, MetricAmmoTable, QueryOptions{}, sink.push)
	require.NoError(t, err)
	q.Start()

	hub.Publish(&Payload{Ammo: map[string]AmmoCount{"clip": {Current: 5}}})
	hub.Publish(&Payload{Ammo: map[string]AmmoCount{"clip": {Current: 4}, "shell": {Current: 8}}})

	s := sink.last(t)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, "clip", s.Fields[0].Name)
	assert.Equal(t, []float64{5, 4}, s.Fields[0].Numbers)
	assert.Equal(t, "shell", s.Fields[1].Name)
	assert.Equal(t, []float64{0, 8}, s.Fields[1].Numbers)
	assert.Equal(t, "ammoTable", s.Fields[1].Labels[MetricLabel])
}

func TestQuery_FPSSkipsFirstEvent(t *testing.T) {
	hub := NewHub()
	clock := clockwork.NewFakeClock()
	var sink seriesSink
	q, err := NewQuery(hub, MetricFPS, QueryOptions{Clock: clock}, sink.push)
	require.NoError(t, err)
	q.Start()

	hub.Publish(&Payload{})
	assert.Empty(t, sink.got)

	clock.Advance(100 * time.Millisecond)
	hub.Publish(&Payload{})
	s := sink.last(t)
	assert.InDelta(t, 10.0, s.Fields[0].Numbers[0], 1e-9)
}

func TestQuery_AmmoEndToEnd(t *testing.T) {
	hub := NewHub()
	var sink seriesSink
	q, err := NewQuery(hub, MetricAmmo, QueryOptions{}, sink.push)
	require.NoError(t, err)
	q.Start()

	p, err := DecodePayload([]byte(shotgunPayload), "")
	require.NoError(t, err)
	require.NotPanics(t, func() { hub.Publish(p) })
	assert.Equal(t, []float64{0}, sink.last(t).Fields[0].Numbers)
}

func TestQuery_CloseStopsUpdates(t *testing.T) {
	hub := NewHub()
	var sink seriesSink
	q, err := NewQuery(hub, MetricKills, QueryOptions{}, sink.push)
	require.NoError(t, err)
	q.Start()
	hub.Publish(&Payload{Kills: 1})

	q.Close()
	q.Close()
	hub.Publish(&Payload{Kills: 2})

	assert.Len(t, sink.got, 1)
	assert.Zero(t, hub.Len())
}

func TestNewQuery_UnknownMetric(t *testing.T) {
	_, err := NewQuery(NewHub(), Metric("mana"), QueryOptions{}, func(*frame.Series) {})
	assert.ErrorIs(t, err, ErrUnknownMetric)
}
