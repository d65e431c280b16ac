package hnf

import (
	"fmt"
	"strconv"
	"strings"
)

// Units is a physical length unit such as "8 nanometer". The archive
// stores units as a nanometer factor and never rescales coordinates.
type Units struct {
	Value float64
	Unit  string
}

var nanometersPer = map[string]float64{
	"nm": 1, "nanometer": 1, "nanometers": 1, "nanometre": 1,
	"um": 1e3, "µm": 1e3, "μm": 1e3, "micron": 1e3, "microns": 1e3, "micrometer": 1e3, "micrometers": 1e3, "micrometre": 1e3,
	"mm": 1e6, "millimeter": 1e6, "millimeters": 1e6, "millimetre": 1e6,
	"cm": 1e7, "centimeter": 1e7, "centimeters": 1e7,
	"m": 1e9, "meter": 1e9, "meters": 1e9, "metre": 1e9,
	"pm": 1e-3, "picometer": 1e-3,
	"å": 0.1, "angstrom": 0.1, "angstroms": 0.1,
}

// UnitsNM returns v nanometers.
func UnitsNM(v float64) Units {
	return Units{Value: v, Unit: "nanometer"}
}

// ParseUnits parses "<value> <unit>" or a bare unit, e.g. "8 nanometer",
// "1 micron", "nm" or "dimensionless". The empty string is the zero Units.
func ParseUnits(s string) (Units, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return Units{}, nil
	case 1:
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return Units{Value: v, Unit: "dimensionless"}, nil
		}
		return Units{Value: 1, Unit: fields[0]}, nil
	case 2:
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Units{}, fmt.Errorf("hnf: parse units %q: %w", s, err)
		}
		return Units{Value: v, Unit: fields[1]}, nil
	}
	return Units{}, fmt.Errorf("hnf: parse units %q: want \"<value> <unit>\"", s)
}

// IsZero reports whether no units are set.
func (u Units) IsZero() bool {
	return u.Unit == "" && u.Value == 0
}

// Nanometers returns the size of one unit step in nanometers. It reports
// false for dimensionless and non-length units.
func (u Units) Nanometers() (float64, bool) {
	factor, ok := nanometersPer[strings.ToLower(u.Unit)]
	if !ok {
		return 0, false
	}
	return u.Value * factor, true
}

func (u Units) String() string {
	if u.IsZero() {
		return ""
	}
	return strconv.FormatFloat(u.Value, 'g', -1, 64) + " " + u.Unit
}
