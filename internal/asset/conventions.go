package asset

import (
	"sort"
	"strings"

	"github.com/starford/rigmerge/internal/anim"
)

// Conventions names the bones and units every asset in a batch agrees on.
type Conventions struct {
	HipBone      string
	RootBone     string
	BonePrefixes []string
	UnitScale    float64
	// ScaleAxes lists the hip location axes converted by UnitScale.
	ScaleAxes []int
	UpAxis    int
	// RootTail is the tail length of the synthetic root bone along UpAxis.
	RootTail float64
}

// DefaultConventions matches Mixamo exports: centimetre sources, Y up,
// "mixamorig:" bone prefixes.
func DefaultConventions() Conventions {
	return Conventions{
		HipBone:      "Hips",
		RootBone:     "RootMotion",
		BonePrefixes: []string{"mixamorig:", "mixamorig1:"},
		UnitScale:    0.01,
		ScaleAxes:    []int{anim.AxisX, anim.AxisY, anim.AxisZ},
		UpAxis:       anim.AxisY,
		RootTail:     0.2,
	}
}

// Horizontal returns the two axes orthogonal to UpAxis.
func (c Conventions) Horizontal() [2]int {
	var out [2]int
	n := 0
	for axis := anim.AxisX; axis <= anim.AxisZ; axis++ {
		if axis == c.UpAxis {
			continue
		}
		out[n] = axis
		n++
	}
	return out
}

// StripPrefix removes the longest prefix of name found in prefixes.
// Matching is case-sensitive and anchored at the start of name.
func StripPrefix(name string, prefixes []string) string {
	sorted := append([]string(nil), prefixes...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	for _, p := range sorted {
		if p != "" && strings.HasPrefix(name, p) {
			return name[len(p):]
		}
	}
	return name
}
