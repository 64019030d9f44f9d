package models

import (
	"database/sql/driver"
	"fmt"
)

// Mode is a transport mode. The zero value is not a valid mode.
type Mode uint8

// Transport modes.
const (
	ModeCar Mode = iota + 1
	ModeBus
	ModeTrain
	ModeBike
	ModeWalk
	ModeEScooter

	modeEnd
)

// NumModes is the number of valid transport modes.
const NumModes = int(modeEnd) - 1

var modeNames = [...]string{
	ModeCar:      "car",
	ModeBus:      "bus",
	ModeTrain:    "train",
	ModeBike:     "bike",
	ModeWalk:     "walk",
	ModeEScooter: "eScooter",
}

// Fails to compile when a mode is added without a name.
var _ = [1]struct{}{}[len(modeNames)-int(modeEnd)]

// Modes returns every valid mode in declaration order.
func Modes() []Mode {
	modes := make([]Mode, 0, NumModes)
	for m := ModeCar; m < modeEnd; m++ {
		modes = append(modes, m)
	}
	return modes
}

// ParseMode looks up a mode by its wire name ("car", "eScooter", ...).
func ParseMode(s string) (Mode, bool) {
	for m := ModeCar; m < modeEnd; m++ {
		if modeNames[m] == s {
			return m, true
		}
	}
	return 0, false
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool {
	return m >= ModeCar && m < modeEnd
}

// String returns the wire name of the mode.
func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
	return modeNames[m]
}

// IsGreen reports whether the mode is human or near-zero powered.
func (m Mode) IsGreen() bool {
	return m == ModeWalk || m == ModeBike || m == ModeEScooter
}

// IsTransit reports whether the mode is public transport.
func (m Mode) IsTransit() bool {
	return m == ModeBus || m == ModeTrain
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid transport mode %d", uint8(m))
	}
	return []byte(modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, ok := ParseMode(string(text))
	if !ok {
		return fmt.Errorf("unknown transport mode %q", string(text))
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer; modes are stored by name.
func (m Mode) Value() (driver.Value, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid transport mode %d", uint8(m))
	}
	return modeNames[m], nil
}

// Scan implements sql.Scanner.
func (m *Mode) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return m.UnmarshalText([]byte(v))
	case []byte:
		return m.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Mode", src)
	}
}

// GormDataType stores modes as short strings.
func (Mode) GormDataType() string {
	return "string"
}
