package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Field identifies one LLC4320 variable and where the origin stores it.
type Field struct {
	Name        string // canonical short name: salt, theta, w
	DatasetPath string // IDX dataset path on the origin
	Unit        string
}

var fields = map[string]Field{
	"salt":  {Name: "salt", DatasetPath: "nasa/nsdf/climate1/llc4320/idx/salt/salt_llc4320_x_y_depth.idx", Unit: "g kg⁻¹"},
	"theta": {Name: "theta", DatasetPath: "nasa/nsdf/climate1/llc4320/idx/theta/theta_llc4320_x_y_depth.idx", Unit: "°C"},
	"w":     {Name: "w", DatasetPath: "nasa/nsdf/climate1/llc4320/idx/w/w_llc4320_x_y_depth.idx", Unit: "m s⁻¹"},
}

var aliases = map[string]string{
	"salinity":          "salt",
	"temperature":       "theta",
	"vertical_velocity": "w",
}

// LookupField resolves a field name or alias, case-insensitively.
func LookupField(name string) (Field, error) {
	key := strings.ToLower(name)
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	f, ok := fields[key]
	if !ok {
		return Field{}, fmt.Errorf("%w: unknown field %q, available fields: %s",
			ErrBadParameter, name, strings.Join(FieldNames(), ", "))
	}
	return f, nil
}

// FieldNames lists every accepted field name, aliases included, sorted.
func FieldNames() []string {
	names := make([]string, 0, len(fields)+len(aliases))
	for name := range fields {
		names = append(names, name)
	}
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// FieldUnits maps every accepted field name to its unit string.
func FieldUnits() map[string]string {
	units := make(map[string]string, len(fields)+len(aliases))
	for name, f := range fields {
		units[name] = f.Unit
	}
	for alias, canonical := range aliases {
		units[alias] = fields[canonical].Unit
	}
	return units
}
