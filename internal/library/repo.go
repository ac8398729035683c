package library

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/starford/rigmerge/internal/anim"
)

// Source records one input clip file and its content checksum.
type Source struct {
	Name     string
	Checksum string
}

// Project is the content of one library file.
type Project struct {
	Skeleton  *anim.Skeleton
	Sources   []Source
	CreatedAt time.Time
}

// WriteProject replaces the database content with p within a transaction.
func (db *DB) WriteProject(p *Project) error {
	if p.Skeleton == nil {
		return fmt.Errorf("library: project has no skeleton")
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("library: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"keyframes", "curves", "tracks", "attachments", "bones", "sources", "meta"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("library: clear %s: %w", table, err)
		}
	}

	s := p.Skeleton
	transform, err := json.Marshal(s.Transform)
	if err != nil {
		return fmt.Errorf("library: encode transform: %w", err)
	}
	meta := map[string]string{
		"format":     FormatVersion,
		"skeleton":   s.Name,
		"transform":  string(transform),
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("library: insert meta %s: %w", k, err)
		}
	}

	for i, b := range s.Bones {
		parent := ""
		if b.Parent != nil {
			parent = b.Parent.Name
		}
		head, err := json.Marshal(b.Head)
		if err != nil {
			return fmt.Errorf("library: encode bone %q head: %w", b.Name, err)
		}
		tail, err := json.Marshal(b.Tail)
		if err != nil {
			return fmt.Errorf("library: encode bone %q tail: %w", b.Name, err)
		}
		_, err = tx.Exec(`INSERT INTO bones (idx, name, parent, head, tail, rotation_mode) VALUES (?, ?, ?, ?, ?, ?)`,
			i, b.Name, parent, string(head), string(tail), b.RotationMode)
		if err != nil {
			return fmt.Errorf("library: insert bone %q: %w", b.Name, err)
		}
	}

	for i, a := range s.Attachments {
		local, err := json.Marshal(a.Local)
		if err != nil {
			return fmt.Errorf("library: encode attachment %q: %w", a.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO attachments (idx, name, local) VALUES (?, ?, ?)`, i, a.Name, string(local)); err != nil {
			return fmt.Errorf("library: insert attachment %q: %w", a.Name, err)
		}
	}

	curveStmt, err := tx.Prepare(`INSERT INTO curves (track, ord, bone, channel, axis) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("library: prepare curve insert: %w", err)
	}
	defer curveStmt.Close()
	keyStmt, err := tx.Prepare(`INSERT INTO keyframes (curve, ord, time, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("library: prepare keyframe insert: %w", err)
	}
	defer keyStmt.Close()

	for i, tr := range s.Tracks {
		_, err := tx.Exec(`INSERT INTO tracks (idx, name, lane, start_frame, end_frame, loop, clip, fps) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i, tr.Name, tr.Lane, tr.Start, tr.End, tr.Loop, tr.Clip.Name, tr.Clip.FPS)
		if err != nil {
			return fmt.Errorf("library: insert track %q: %w", tr.Name, err)
		}
		for ord, c := range tr.Clip.Curves {
			res, err := curveStmt.Exec(i, ord, c.Path.Bone, c.Path.Channel.String(), c.Path.Axis)
			if err != nil {
				return fmt.Errorf("library: insert curve %s: %w", c.Path, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("library: curve id: %w", err)
			}
			for k, key := range c.Keys {
				if _, err := keyStmt.Exec(id, k, key.Time, key.Value); err != nil {
					return fmt.Errorf("library: insert keyframe %s[%d]: %w", c.Path, k, err)
				}
			}
		}
	}

	for _, src := range p.Sources {
		if _, err := tx.Exec(`INSERT INTO sources (name, checksum) VALUES (?, ?)`, src.Name, src.Checksum); err != nil {
			return fmt.Errorf("library: insert source %q: %w", src.Name, err)
		}
	}

	return tx.Commit()
}

// ReadProject rebuilds the stored project.
func (db *DB) ReadProject() (*Project, error) {
	meta, err := db.meta()
	if err != nil {
		return nil, err
	}
	if meta["format"] != FormatVersion {
		return nil, fmt.Errorf("library: unsupported format %q", meta["format"])
	}
	s := anim.NewSkeleton(meta["skeleton"])
	if err := json.Unmarshal([]byte(meta["transform"]), &s.Transform); err != nil {
		return nil, fmt.Errorf("library: transform: %w", err)
	}
	p := &Project{Skeleton: s}
	if ts := meta["created_at"]; ts != "" {
		if p.CreatedAt, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("library: created_at: %w", err)
		}
	}

	if err := db.readBones(s); err != nil {
		return nil, err
	}
	if err := db.readAttachments(s); err != nil {
		return nil, err
	}
	if err := db.readTracks(s); err != nil {
		return nil, err
	}
	if p.Sources, err = db.Sources(); err != nil {
		return nil, err
	}
	return p, nil
}

func (db *DB) meta() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("library: meta: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (db *DB) readBones(s *anim.Skeleton) error {
	rows, err := db.conn.Query(`SELECT name, parent, head, tail, rotation_mode FROM bones ORDER BY idx`)
	if err != nil {
		return fmt.Errorf("library: bones: %w", err)
	}
	defer rows.Close()
	parents := make(map[*anim.Bone]string)
	for rows.Next() {
		var name, parent, head, tail, mode string
		if err := rows.Scan(&name, &parent, &head, &tail, &mode); err != nil {
			return err
		}
		b := &anim.Bone{Name: name, RotationMode: mode}
		if err := unmarshalVec(head, &b.Head); err != nil {
			return fmt.Errorf("library: bone %q head: %w", name, err)
		}
		if err := unmarshalVec(tail, &b.Tail); err != nil {
			return fmt.Errorf("library: bone %q tail: %w", name, err)
		}
		if err := s.AddBone(b); err != nil {
			return fmt.Errorf("library: %w", err)
		}
		if parent != "" {
			parents[b] = parent
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for b, name := range parents {
		if b.Parent = s.Bone(name); b.Parent == nil {
			return fmt.Errorf("library: bone %q has unknown parent %q", b.Name, name)
		}
	}
	return nil
}

func unmarshalVec(s string, v *mgl64.Vec3) error {
	return json.Unmarshal([]byte(s), v)
}

func (db *DB) readAttachments(s *anim.Skeleton) error {
	rows, err := db.conn.Query(`SELECT name, local FROM attachments ORDER BY idx`)
	if err != nil {
		return fmt.Errorf("library: attachments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, local string
		if err := rows.Scan(&name, &local); err != nil {
			return err
		}
		a := &anim.Attachment{Name: name}
		if err := json.Unmarshal([]byte(local), &a.Local); err != nil {
			return fmt.Errorf("library: attachment %q: %w", name, err)
		}
		s.Attachments = append(s.Attachments, a)
	}
	return rows.Err()
}

func (db *DB) readTracks(s *anim.Skeleton) error {
	rows, err := db.conn.Query(`SELECT idx, name, lane, start_frame, end_frame, loop, clip, fps FROM tracks ORDER BY idx`)
	if err != nil {
		return fmt.Errorf("library: tracks: %w", err)
	}
	var ids []int
	for rows.Next() {
		var id int
		tr := &anim.Track{}
		var clip string
		var fps float64
		if err := rows.Scan(&id, &tr.Name, &tr.Lane, &tr.Start, &tr.End, &tr.Loop, &clip, &fps); err != nil {
			rows.Close()
			return err
		}
		tr.Clip = anim.NewClip(clip, fps)
		s.Tracks = append(s.Tracks, tr)
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return err
	}
	// Curves are read after the cursor closes so the connection is free.
	for i, tr := range s.Tracks {
		if err := db.readCurves(ids[i], tr.Clip); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) readCurves(track int, clip *anim.Clip) error {
	rows, err := db.conn.Query(`
		SELECT c.id, c.bone, c.channel, c.axis, k.time, k.value
		FROM curves c LEFT JOIN keyframes k ON k.curve = c.id
		WHERE c.track = ?
		ORDER BY c.ord, k.ord
	`, track)
	if err != nil {
		return fmt.Errorf("library: curves: %w", err)
	}
	defer rows.Close()
	var cur *anim.Curve
	lastID := int64(-1)
	for rows.Next() {
		var id int64
		var bone, channel string
		var axis int
		var t, v sql.NullFloat64
		if err := rows.Scan(&id, &bone, &channel, &axis, &t, &v); err != nil {
			return err
		}
		if id != lastID {
			ch, err := anim.ParseChannel(channel)
			if err != nil {
				return fmt.Errorf("library: clip %q: %w", clip.Name, err)
			}
			cur = anim.NewCurve(anim.Path{Bone: bone, Channel: ch, Axis: axis})
			clip.Curves = append(clip.Curves, cur)
			lastID = id
		}
		if t.Valid {
			cur.Keys = append(cur.Keys, anim.Keyframe{Time: t.Float64, Value: v.Float64})
		}
	}
	return rows.Err()
}

// Sources returns the recorded input files ordered by name.
func (db *DB) Sources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT name, checksum FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("library: sources: %w", err)
	}
	defer rows.Close()
	var out []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.Name, &s.Checksum); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TrackInfo summarises one stored track.
type TrackInfo struct {
	Name   string
	Lane   int
	Start  float64
	End    float64
	Loop   bool
	Curves int
}

// Tracks lists stored tracks in commit order without loading keyframes.
func (db *DB) Tracks() ([]TrackInfo, error) {
	rows, err := db.conn.Query(`
		SELECT t.name, t.lane, t.start_frame, t.end_frame, t.loop, COUNT(c.id)
		FROM tracks t LEFT JOIN curves c ON c.track = t.idx
		GROUP BY t.idx
		ORDER BY t.idx
	`)
	if err != nil {
		return nil, fmt.Errorf("library: list tracks: %w", err)
	}
	defer rows.Close()
	var out []TrackInfo
	for rows.Next() {
		var ti TrackInfo
		if err := rows.Scan(&ti.Name, &ti.Lane, &ti.Start, &ti.End, &ti.Loop, &ti.Curves); err != nil {
			return nil, err
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}
