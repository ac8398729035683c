// Package anim defines the skeleton, clip and curve types the pipeline operates on.
package anim

import (
	"fmt"
	"math"
	"sort"
)

// Channel identifies which transform property a curve animates.
type Channel int

// Transform channels.
const (
	ChannelLocation Channel = iota
	ChannelRotationEuler
	ChannelRotationQuaternion
	ChannelScale
)

var channelNames = [...]string{
	ChannelLocation:           "location",
	ChannelRotationEuler:      "rotation_euler",
	ChannelRotationQuaternion: "rotation_quaternion",
	ChannelScale:              "scale",
}

func (c Channel) String() string {
	if int(c) < 0 || int(c) >= len(channelNames) {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel is the inverse of Channel.String.
func ParseChannel(s string) (Channel, error) {
	for i, name := range channelNames {
		if name == s {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("anim: unknown channel %q", s)
}

// Vector component indices.
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
	AxisW = 3
)

// Path is the semantic target of a curve.
type Path struct {
	Bone    string
	Channel Channel
	Axis    int
}

func (p Path) String() string {
	return fmt.Sprintf("%s.%s[%d]", p.Bone, p.Channel, p.Axis)
}

// Keyframe is one (time, value) sample. Time is expressed in frames.
type Keyframe struct {
	Time  float64
	Value float64
}

// timeEpsilon is the tolerance under which two key times are the same frame.
const timeEpsilon = 1e-6

// SameTime reports whether a and b address the same frame.
func SameTime(a, b float64) bool {
	return math.Abs(a-b) <= timeEpsilon
}

// Curve is a keyframe sequence bound to one Path. Keys are kept strictly
// increasing in time.
type Curve struct {
	Path Path
	Keys []Keyframe
}

// NewCurve creates a curve for p. Keys are inserted one by one so the result
// is ordered regardless of input order.
func NewCurve(p Path, keys ...Keyframe) *Curve {
	c := &Curve{Path: p}
	for _, k := range keys {
		c.Insert(k.Time, k.Value)
	}
	return c
}

// Len returns the number of keyframes.
func (c *Curve) Len() int {
	return len(c.Keys)
}

// Insert adds a key at t, replacing the value of an existing key at the same time.
func (c *Curve) Insert(t, v float64) {
	i := sort.Search(len(c.Keys), func(i int) bool { return c.Keys[i].Time >= t-timeEpsilon })
	if i < len(c.Keys) && SameTime(c.Keys[i].Time, t) {
		c.Keys[i].Value = v
		return
	}
	c.Keys = append(c.Keys, Keyframe{})
	copy(c.Keys[i+1:], c.Keys[i:])
	c.Keys[i] = Keyframe{Time: t, Value: v}
}

// Times returns the key times in order.
func (c *Curve) Times() []float64 {
	out := make([]float64, len(c.Keys))
	for i, k := range c.Keys {
		out[i] = k.Time
	}
	return out
}

// Evaluate samples the curve at t with linear interpolation, holding the end
// values outside the keyed range. An empty curve evaluates to 0.
func (c *Curve) Evaluate(t float64) float64 {
	n := len(c.Keys)
	if n == 0 {
		return 0
	}
	if t <= c.Keys[0].Time {
		return c.Keys[0].Value
	}
	if t >= c.Keys[n-1].Time {
		return c.Keys[n-1].Value
	}
	i := sort.Search(n, func(i int) bool { return c.Keys[i].Time >= t })
	a, b := c.Keys[i-1], c.Keys[i]
	if SameTime(a.Time, b.Time) {
		return b.Value
	}
	f := (t - a.Time) / (b.Time - a.Time)
	return a.Value + (b.Value-a.Value)*f
}
