package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/bugmaschine/vidsniff/internal/discovery"
	"github.com/bugmaschine/vidsniff/pkg/download"
	"github.com/bugmaschine/vidsniff/pkg/utils"
	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.Bold)
	idColor      = color.New(color.FgCyan)
	formatColors = map[string]*color.Color{
		"HLS":  color.New(color.FgMagenta),
		"DASH": color.New(color.FgMagenta),
	}
	defaultFormatColor = color.New(color.FgGreen)
)

// PrintVideos writes records as a table.
func PrintVideos(w io.Writer, records []discovery.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No videos found")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, headerColor.Sprint("ID\tFORMAT\tQUALITY\tDURATION\tSIZE\tTITLE\tURL"))
	for _, r := range records {
		fc, ok := formatColors[r.Format]
		if !ok {
			fc = defaultFormatColor
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			idColor.Sprint(strconv.FormatInt(r.ID, 10)),
			fc.Sprint(r.Format),
			r.Quality,
			r.Duration,
			utils.FormatFileSize(r.EstimatedSizeBytes),
			r.Title,
			r.URL,
		)
	}
	tw.Flush()
}

// PrintDownloads writes the final state of every download, named by the
// video id it was requested for.
func PrintDownloads(w io.Writer, statuses []download.Status) {
	for _, s := range statuses {
		switch s.State {
		case download.StateComplete:
			if s.Skipped {
				fmt.Fprintf(w, "%s %d %s (exists)\n", color.YellowString("skipped"), s.VideoID, s.Path)
			} else {
				fmt.Fprintf(w, "%s %d %s\n", color.GreenString("done"), s.VideoID, s.Path)
			}
		case download.StateFailed:
			fmt.Fprintf(w, "%s %d %s: %s\n", color.RedString("failed"), s.VideoID, s.Filename, s.Error)
		default:
			fmt.Fprintf(w, "%s %d %s\n", s.State, s.VideoID, s.Filename)
		}
	}
}
