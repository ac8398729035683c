// Package bvh reads Biovision Hierarchy motion-capture files into skeletons
// and clips.
package bvh

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Joint is one node of the BVH hierarchy.
type Joint struct {
	Name     string
	Parent   *Joint
	Offset   mgl64.Vec3
	Channels []string
	// EndSite is the offset of the terminating "End Site", if any.
	EndSite  *mgl64.Vec3
	Children []*Joint
}

// Document is a parsed BVH file. Frames holds one row of channel values per
// frame, in joint then channel declaration order.
type Document struct {
	Joints    []*Joint
	Frames    [][]float64
	FrameTime float64
}

// ChannelCount returns the number of values per frame.
func (d *Document) ChannelCount() int {
	n := 0
	for _, j := range d.Joints {
		n += len(j.Channels)
	}
	return n
}

type tokens struct {
	words []string
	pos   int
}

func (t *tokens) next() (string, error) {
	if t.pos >= len(t.words) {
		return "", io.ErrUnexpectedEOF
	}
	w := t.words[t.pos]
	t.pos++
	return w, nil
}

func (t *tokens) expect(want string) error {
	got, err := t.next()
	if err != nil {
		return fmt.Errorf("bvh: expected %q: %w", want, err)
	}
	if got != want {
		return fmt.Errorf("bvh: expected %q, got %q", want, got)
	}
	return nil
}

func (t *tokens) float() (float64, error) {
	w, err := t.next()
	if err != nil {
		return 0, fmt.Errorf("bvh: expected number: %w", err)
	}
	f, err := strconv.ParseFloat(w, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("bvh: bad number %q", w)
	}
	return f, nil
}

func (t *tokens) remaining() int {
	return len(t.words) - t.pos
}

// count reads a non-negative integer no larger than limit.
func (t *tokens) count(limit int) (int, error) {
	f, err := t.float()
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f > float64(limit) {
		return 0, fmt.Errorf("count %g out of range [0, %d]", f, limit)
	}
	return int(f), nil
}

func (t *tokens) vec3() (mgl64.Vec3, error) {
	var v mgl64.Vec3
	for i := range v {
		f, err := t.float()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// Parse reads a BVH document.
func Parse(r io.Reader) (*Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)
	t := &tokens{}
	for sc.Scan() {
		t.words = append(t.words, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("bvh: read: %w", err)
	}

	doc := &Document{}
	if err := t.expect("HIERARCHY"); err != nil {
		return nil, err
	}
	if err := t.expect("ROOT"); err != nil {
		return nil, err
	}
	if _, err := parseJoint(t, doc, nil); err != nil {
		return nil, err
	}
	if err := parseMotion(t, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseJoint(t *tokens, doc *Document, parent *Joint) (*Joint, error) {
	name, err := t.next()
	if err != nil {
		return nil, fmt.Errorf("bvh: joint name: %w", err)
	}
	j := &Joint{Name: name, Parent: parent}
	doc.Joints = append(doc.Joints, j)
	if err := t.expect("{"); err != nil {
		return nil, err
	}
	for {
		tok, err := t.next()
		if err != nil {
			return nil, fmt.Errorf("bvh: joint %q not closed: %w", name, err)
		}
		switch tok {
		case "OFFSET":
			if j.Offset, err = t.vec3(); err != nil {
				return nil, err
			}
		case "CHANNELS":
			n, err := t.count(t.remaining())
			if err != nil {
				return nil, fmt.Errorf("bvh: joint %q: bad channel count: %w", name, err)
			}
			seen := make(map[string]bool, n)
			for i := 0; i < n; i++ {
				c, err := t.next()
				if err != nil {
					return nil, fmt.Errorf("bvh: joint %q channels: %w", name, err)
				}
				if !validChannel(c) {
					return nil, fmt.Errorf("bvh: joint %q: unknown channel %q", name, c)
				}
				if seen[c] {
					return nil, fmt.Errorf("bvh: joint %q: duplicate channel %q", name, c)
				}
				seen[c] = true
				j.Channels = append(j.Channels, c)
			}
		case "JOINT":
			child, err := parseJoint(t, doc, j)
			if err != nil {
				return nil, err
			}
			j.Children = append(j.Children, child)
		case "End":
			if err := t.expect("Site"); err != nil {
				return nil, err
			}
			if err := t.expect("{"); err != nil {
				return nil, err
			}
			if err := t.expect("OFFSET"); err != nil {
				return nil, err
			}
			v, err := t.vec3()
			if err != nil {
				return nil, err
			}
			j.EndSite = &v
			if err := t.expect("}"); err != nil {
				return nil, err
			}
		case "}":
			return j, nil
		default:
			return nil, fmt.Errorf("bvh: joint %q: unexpected token %q", name, tok)
		}
	}
}

func parseMotion(t *tokens, doc *Document) error {
	if err := t.expect("MOTION"); err != nil {
		return err
	}
	if err := t.expect("Frames:"); err != nil {
		return err
	}
	n, err := t.count(t.remaining())
	if err != nil {
		return fmt.Errorf("bvh: bad frame count: %w", err)
	}
	if err := t.expect("Frame"); err != nil {
		return err
	}
	if err := t.expect("Time:"); err != nil {
		return err
	}
	if doc.FrameTime, err = t.float(); err != nil {
		return err
	}
	if doc.FrameTime <= 0 {
		return fmt.Errorf("bvh: frame time must be positive, got %g", doc.FrameTime)
	}
	width := doc.ChannelCount()
	if width == 0 {
		return fmt.Errorf("bvh: hierarchy declares no channels")
	}
	if n > t.remaining()/width {
		return fmt.Errorf("bvh: %d frames of %d values declared, %d values present", n, width, t.remaining())
	}
	doc.Frames = make([][]float64, n)
	for f := range doc.Frames {
		row := make([]float64, width)
		for c := range row {
			if row[c], err = t.float(); err != nil {
				return fmt.Errorf("bvh: frame %d: %w", f, err)
			}
		}
		doc.Frames[f] = row
	}
	if t.pos != len(t.words) {
		return fmt.Errorf("bvh: %d trailing values after %d frames", len(t.words)-t.pos, n)
	}
	return nil
}

func validChannel(c string) bool {
	if len(c) < 2 || !strings.ContainsRune("XYZ", rune(c[0])) {
		return false
	}
	kind := c[1:]
	return kind == "position" || kind == "rotation"
}
