package anim

import "math"

// Clip is a named set of curves animating one skeleton.
type Clip struct {
	Name   string
	FPS    float64
	Curves []*Curve
}

// NewClip returns an empty clip.
func NewClip(name string, fps float64) *Clip {
	return &Clip{Name: name, FPS: fps}
}

// Curve returns the curve bound to p, or nil.
func (c *Clip) Curve(p Path) *Curve {
	for _, cv := range c.Curves {
		if cv.Path == p {
			return cv
		}
	}
	return nil
}

// EnsureCurve returns the curve bound to p, creating an empty one if needed.
func (c *Clip) EnsureCurve(p Path) *Curve {
	if cv := c.Curve(p); cv != nil {
		return cv
	}
	cv := &Curve{Path: p}
	c.Curves = append(c.Curves, cv)
	return cv
}

// Remove deletes curve from the clip. It reports whether the curve was present.
func (c *Clip) Remove(curve *Curve) bool {
	for i, cv := range c.Curves {
		if cv == curve {
			c.Curves = append(c.Curves[:i], c.Curves[i+1:]...)
			return true
		}
	}
	return false
}

// FrameRange returns the first and last key time over every curve.
func (c *Clip) FrameRange() (start, end float64, ok bool) {
	start, end = math.Inf(1), math.Inf(-1)
	for _, cv := range c.Curves {
		if len(cv.Keys) == 0 {
			continue
		}
		ok = true
		start = math.Min(start, cv.Keys[0].Time)
		end = math.Max(end, cv.Keys[len(cv.Keys)-1].Time)
	}
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

// Targets returns the distinct bone names the clip animates, in first-seen order.
func (c *Clip) Targets() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, cv := range c.Curves {
		if _, ok := seen[cv.Path.Bone]; ok {
			continue
		}
		seen[cv.Path.Bone] = struct{}{}
		out = append(out, cv.Path.Bone)
	}
	return out
}

// RenameTarget retargets every curve bound to bone old onto bone name.
func (c *Clip) RenameTarget(old, name string) {
	for _, cv := range c.Curves {
		if cv.Path.Bone == old {
			cv.Path.Bone = name
		}
	}
}
