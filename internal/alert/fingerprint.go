package alert

import (
	"fmt"
	"math"
	"strings"
)

// Fingerprint formats a shortage in display units, e.g. "shortage:12.5kg".
// The magnitude is part of the value so a changed shortage re-triggers.
func Fingerprint(shortage, divisor float64, unit string) string {
	if divisor <= 0 {
		divisor = 1
	}
	v := shortage / divisor
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	// Avoid "-0.0" for tiny negative noise.
	if math.Abs(v) < 0.05 {
		v = 0
	}
	return fmt.Sprintf("shortage:%.1f%s", v, strings.TrimSpace(unit))
}

// Channel scopes a base channel to one material.
func Channel(base, materialID string) string {
	if materialID == "" {
		return base
	}
	return base + ":" + materialID
}
