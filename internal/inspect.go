package internal

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/starford/rigmerge/internal/library"
)

// Inspect prints the track listing of the library at path.
func Inspect(path string, w io.Writer) error {
	sum, err := library.NewStore(slog.New(slog.NewTextHandler(io.Discard, nil))).Summarize(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "skeleton %s, %d bones, %d tracks\n", sum.Skeleton, sum.Bones, len(sum.Tracks))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANE\tTRACK\tSTART\tEND\tLOOP\tCURVES")
	for _, tr := range sum.Tracks {
		fmt.Fprintf(tw, "%d\t%s\t%g\t%g\t%t\t%d\n", tr.Lane, tr.Name, tr.Start, tr.End, tr.Loop, tr.Curves)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, s := range sum.Sources {
		fmt.Fprintf(w, "source %s %s\n", s.Name, s.Checksum)
	}
	return nil
}
