package enums

import (
	"fmt"
	"strings"
)

// PowertrainClass is the fuel/propulsion class reported by the listing.
type PowertrainClass string

const (
	PowertrainElectric     PowertrainClass = "electric"
	PowertrainPlugInHybrid PowertrainClass = "plug_in_hybrid"
	PowertrainHybrid       PowertrainClass = "hybrid"
	PowertrainPetrol       PowertrainClass = "petrol"
	PowertrainDiesel       PowertrainClass = "diesel"
	PowertrainLPG          PowertrainClass = "lpg"
	PowertrainUnknown      PowertrainClass = "unknown"
)

var validPowertrainClasses = []PowertrainClass{
	PowertrainElectric,
	PowertrainPlugInHybrid,
	PowertrainHybrid,
	PowertrainPetrol,
	PowertrainDiesel,
	PowertrainLPG,
	PowertrainUnknown,
}

var powertrainAliases = map[string]PowertrainClass{
	"ev":                 PowertrainElectric,
	"bev":                PowertrainElectric,
	"electrico":          PowertrainElectric,
	"phev":               PowertrainPlugInHybrid,
	"plug-in hybrid":     PowertrainPlugInHybrid,
	"plug-in-hybrid":     PowertrainPlugInHybrid,
	"hibrido enchufable": PowertrainPlugInHybrid,
	"hev":                PowertrainHybrid,
	"hibrido":            PowertrainHybrid,
	"gasoline":           PowertrainPetrol,
	"gasolina":           PowertrainPetrol,
	"glp":                PowertrainLPG,
}

func (p PowertrainClass) String() string {
	return string(p)
}

// IsValid reports whether the class is known.
func (p PowertrainClass) IsValid() bool {
	for _, candidate := range validPowertrainClasses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePowertrainClass converts raw input into a PowertrainClass.
func ParsePowertrainClass(value string) (PowertrainClass, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPowertrainClasses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if alias, ok := powertrainAliases[normalized]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid powertrain class %q", value)
}

// NormalizePowertrainClass never fails; unrecognised input maps to PowertrainUnknown.
func NormalizePowertrainClass(value string) PowertrainClass {
	class, err := ParsePowertrainClass(value)
	if err != nil {
		return PowertrainUnknown
	}
	return class
}
