// Package metrics fans metric payloads from one source out to many metric
// queries.
package metrics

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// PayloadVersion is the payload schema this package understands.
const PayloadVersion = 2

// Payload is one metric event emitted by the renderer.
type Payload struct {
	Version int                  `json:"version,omitempty" msgpack:"version,omitempty"`
	Health  int                  `json:"health" msgpack:"health"`
	Kills   int                  `json:"kills" msgpack:"kills"`
	Armor   Armor                `json:"armor" msgpack:"armor"`
	Ammo    map[string]AmmoCount `json:"ammo,omitempty" msgpack:"ammo,omitempty"`
	Weapons map[string]Weapon    `json:"weapons,omitempty" msgpack:"weapons,omitempty"`
}

// Armor is the armor the player wears.
type Armor struct {
	Count int `json:"count" msgpack:"count"`
	Type  int `json:"type" msgpack:"type"`
}

// AmmoCount is the stock of one ammo type.
type AmmoCount struct {
	Current int `json:"current" msgpack:"current"`
	Max     int `json:"max" msgpack:"max"`
}

// Weapon is the state of one weapon slot. Ammo names the ammo type it uses.
type Weapon struct {
	Available bool   `json:"available" msgpack:"available"`
	Current   bool   `json:"current" msgpack:"current"`
	Ammo      string `json:"ammo,omitempty" msgpack:"ammo,omitempty"`
}

// Content types accepted by DecodePayload.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

// DecodePayload decodes a payload in the given content type. An empty
// content type is JSON.
func DecodePayload(data []byte, contentType string) (*Payload, error) {
	p := &Payload{}
	switch contentType {
	case "", ContentTypeJSON:
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("decode json payload: %w", err)
		}
	case ContentTypeMsgpack, "application/x-msgpack":
		if err := msgpack.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("decode msgpack payload: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported payload content type %q", contentType)
	}
	if p.Version == 0 {
		p.Version = PayloadVersion
	}
	return p, nil
}

// CurrentWeapon returns the weapon marked current. When none is, ok is false.
// Several current weapons resolve to the first by name.
func (p *Payload) CurrentWeapon() (name string, w Weapon, ok bool) {
	if p == nil {
		return "", Weapon{}, false
	}
	names := make([]string, 0, len(p.Weapons))
	for n, wp := range p.Weapons {
		if wp.Current {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", Weapon{}, false
	}
	sort.Strings(names)
	return names[0], p.Weapons[names[0]], true
}

// CurrentAmmo returns the stock of the current weapon's ammo type. A missing
// weapon, ammo type, or ammo entry yields the zero count.
func (p *Payload) CurrentAmmo() AmmoCount {
	_, w, ok := p.CurrentWeapon()
	if !ok || w.Ammo == "" {
		return AmmoCount{}
	}
	return p.Ammo[w.Ammo]
}
