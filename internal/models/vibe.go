package models

import (
	"fmt"
	"strings"
)

// Vibe is the categorical mood token carried by presence tiles and clusters
type Vibe uint8

const (
	VibeUnknown Vibe = iota
	VibeChill
	VibeHype
	VibeSocial
	VibeRomantic
	VibeSolo
	VibeWeird
	VibeFlowing
	VibeDown
	VibeOpen
	VibeCurious
)

var vibeNames = [...]string{
	VibeUnknown:  "unknown",
	VibeChill:    "chill",
	VibeHype:     "hype",
	VibeSocial:   "social",
	VibeRomantic: "romantic",
	VibeSolo:     "solo",
	VibeWeird:    "weird",
	VibeFlowing:  "flowing",
	VibeDown:     "down",
	VibeOpen:     "open",
	VibeCurious:  "curious",
}

// VibeCount is the size of the closed vibe set, VibeUnknown included
const VibeCount = len(vibeNames)

// ParseVibe maps a raw token onto the closed vibe set.
// Unrecognised tokens fall back to VibeUnknown.
func ParseVibe(s string) Vibe {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range vibeNames {
		if name == s {
			return Vibe(i)
		}
	}
	return VibeUnknown
}

// String returns the token name
func (v Vibe) String() string {
	if int(v) < len(vibeNames) {
		return vibeNames[v]
	}
	return fmt.Sprintf("vibe(%d)", uint8(v))
}

// Valid reports whether v is one of the declared variants
func (v Vibe) Valid() bool {
	return int(v) < len(vibeNames)
}

// MarshalText implements encoding.TextMarshaler
func (v Vibe) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return []byte(vibeNames[VibeUnknown]), nil
	}
	return []byte(vibeNames[v]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// It never fails: unknown tokens decode to VibeUnknown.
func (v *Vibe) UnmarshalText(text []byte) error {
	*v = ParseVibe(string(text))
	return nil
}
