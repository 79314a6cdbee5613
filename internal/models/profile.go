package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AnonymousName is shown when a member has no resolvable nickname.
const AnonymousName = "anonymous"

// Profile holds the public fields of a user.
type Profile struct {
	Nickname *string `json:"nickname"`
}

type profileShape int

const (
	profileAbsent profileShape = iota
	profileOne
	profileMany
)

// ProfileRef is the result of joining a membership with profiles. Depending on
// how the join was requested it arrives as nothing, a single object or a list.
// The zero value is the absent variant.
type ProfileRef struct {
	shape    profileShape
	profiles []Profile
}

// NoProfile returns the absent variant.
func NoProfile() ProfileRef {
	return ProfileRef{}
}

// OneProfile returns the single-object variant.
func OneProfile(p Profile) ProfileRef {
	return ProfileRef{shape: profileOne, profiles: []Profile{p}}
}

// ManyProfiles returns the list variant.
func ManyProfiles(ps ...Profile) ProfileRef {
	return ProfileRef{shape: profileMany, profiles: append([]Profile(nil), ps...)}
}

// Present reports whether the join produced anything at all.
func (r ProfileRef) Present() bool {
	return r.shape != profileAbsent
}

// Nickname returns the first available nickname.
func (r ProfileRef) Nickname() (string, bool) {
	if r.shape == profileAbsent || len(r.profiles) == 0 {
		return "", false
	}
	nick := r.profiles[0].Nickname
	if nick == nil {
		return "", false
	}
	return *nick, true
}

// UnmarshalJSON accepts null, an object or an array of objects.
func (r *ProfileRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*r = NoProfile()
	case trimmed[0] == '[':
		var list []Profile
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("decode profile list: %w", err)
		}
		*r = ManyProfiles(list...)
	case trimmed[0] == '{':
		var p Profile
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return fmt.Errorf("decode profile: %w", err)
		}
		*r = OneProfile(p)
	default:
		// scalars carry no nickname
		*r = NoProfile()
	}
	return nil
}

// MarshalJSON writes the variant back in its original shape.
func (r ProfileRef) MarshalJSON() ([]byte, error) {
	switch r.shape {
	case profileOne:
		return json.Marshal(r.profiles[0])
	case profileMany:
		if r.profiles == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.profiles)
	default:
		return []byte("null"), nil
	}
}
