// Package curveops holds stateless keyframe-curve utilities: selection by
// semantic role, value scaling, and point copies between curves.
package curveops

import (
	"fmt"

	"github.com/starford/rigmerge/internal/anim"
	"github.com/starford/rigmerge/internal/apperr"
)

// Predicate selects curves by their semantic path.
type Predicate func(p anim.Path) bool

// HipPosition matches the location curves of the hip bone.
func HipPosition(hip string) Predicate {
	return position(hip)
}

// RootPosition matches the location curves of the root-motion bone.
func RootPosition(root string) Predicate {
	return position(root)
}

func position(bone string) Predicate {
	return func(p anim.Path) bool {
		return p.Bone == bone && p.Channel == anim.ChannelLocation
	}
}

// SelectByPath returns the x, y and z curves of clip matching pred, indexed by
// axis. Absent axes are nil.
func SelectByPath(clip *anim.Clip, pred Predicate) [3]*anim.Curve {
	var out [3]*anim.Curve
	for _, cv := range clip.Curves {
		if cv.Path.Axis < anim.AxisX || cv.Path.Axis > anim.AxisZ {
			continue
		}
		if pred(cv.Path) {
			out[cv.Path.Axis] = cv
		}
	}
	return out
}

// RequireAxes fails with apperr.ErrMissingCurve naming the first absent
// location curve of bone among axes.
func RequireAxes(curves [3]*anim.Curve, bone string, axes ...int) error {
	for _, axis := range axes {
		if curves[axis] == nil {
			p := anim.Path{Bone: bone, Channel: anim.ChannelLocation, Axis: axis}
			return fmt.Errorf("%w: %s", apperr.ErrMissingCurve, p)
		}
	}
	return nil
}

// ScaleAxis multiplies the value of every key on curve by factor.
func ScaleAxis(curve *anim.Curve, factor float64) {
	for i := range curve.Keys {
		curve.Keys[i].Value *= factor
	}
}

// Cadence selects how CopyWith aligns source and target keys.
type Cadence string

// Supported cadence policies.
const (
	// CadenceStrict copies by index and rejects misaligned curves.
	CadenceStrict Cadence = "strict"
	// CadenceByTime writes each source key at its own time on the target.
	CadenceByTime Cadence = "by_time"
)

// CopyWith dispatches to CopyKeyframes or CopyKeyframesByTime.
func CopyWith(c Cadence, source, target *anim.Curve) error {
	switch c {
	case CadenceByTime:
		CopyKeyframesByTime(source, target)
		return nil
	case CadenceStrict, "":
		return CopyKeyframes(source, target)
	default:
		return fmt.Errorf("curveops: unknown cadence %q", c)
	}
}

// CopyKeyframes grows target to the length of source and overwrites each
// target key with the source key at the same index. Target keys that already
// exist must sit at the source time of the same index, and target must not be
// longer than source; either violation yields apperr.ErrCadenceMismatch and
// leaves target untouched.
func CopyKeyframes(source, target *anim.Curve) error {
	if len(target.Keys) > len(source.Keys) {
		return fmt.Errorf("%w: %s has %d keys, source %s has %d",
			apperr.ErrCadenceMismatch, target.Path, len(target.Keys), source.Path, len(source.Keys))
	}
	for i, k := range target.Keys {
		if !anim.SameTime(k.Time, source.Keys[i].Time) {
			return fmt.Errorf("%w: %s key %d at frame %g, source %s at frame %g",
				apperr.ErrCadenceMismatch, target.Path, i, k.Time, source.Path, source.Keys[i].Time)
		}
	}
	if grow := len(source.Keys) - len(target.Keys); grow > 0 {
		target.Keys = append(target.Keys, make([]anim.Keyframe, grow)...)
	}
	copy(target.Keys, source.Keys)
	return nil
}

// CopyKeyframesByTime writes every source key onto target at the key's own
// time, replacing target keys at equal times and keeping the rest.
func CopyKeyframesByTime(source, target *anim.Curve) {
	for _, k := range source.Keys {
		target.Insert(k.Time, k.Value)
	}
}

// RemoveCurve deletes curve from clip. Removing an absent curve is a no-op
// that reports false.
func RemoveCurve(clip *anim.Clip, curve *anim.Curve) bool {
	return clip.Remove(curve)
}
