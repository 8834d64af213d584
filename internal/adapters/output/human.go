package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/mikey-austin/loop_utopia/internal/core"
	"github.com/mikey-austin/loop_utopia/internal/media"
	"github.com/mikey-austin/loop_utopia/pkg/lu"
)

// HumanPrinter prints tables and status lines.
type HumanPrinter struct {
	Out io.Writer
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	switch data := v.(type) {
	case core.NodesResult:
		return printNodes(out, data)
	case core.StatusResult:
		return printStatus(out, data)
	case lu.PlayerState:
		return printState(out, "", data)
	case lu.Event:
		_, err := fmt.Fprintf(out, "event %s\n", data.Type)
		return err
	case core.LoadResult:
		verb := "loaded"
		if data.Restarted {
			verb = "restarted"
		}
		_, err := fmt.Fprintf(out, "%s %s\n", verb, data.ID)
		return err
	case core.PlaylistListResult:
		return printPlaylists(out, data)
	case core.PlaylistResult:
		return printPlaylist(out, data)
	case string:
		_, err := fmt.Fprintln(out, data)
		return err
	default:
		_, err := fmt.Fprintln(out, "ok")
		return err
	}
}

func renderTable(out io.Writer, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, table)
	return err
}

func printNodes(out io.Writer, result core.NodesResult) error {
	data := pterm.TableData{{"NAME", "KIND", "NODE_ID"}}
	for _, node := range result.Nodes {
		data = append(data, []string{node.Name, node.Kind, node.NodeID})
	}
	return renderTable(out, data)
}

func printStatus(out io.Writer, result core.StatusResult) error {
	return printState(out, result.Player.Name, result.State)
}

func printState(out io.Writer, name string, state lu.PlayerState) error {
	parts := make([]string, 0, 5)
	if name != "" {
		parts = append(parts, name)
	}
	parts = append(parts, "["+phaseLabel(state.Phase)+"]")
	switch {
	case state.Title != "":
		parts = append(parts, fmt.Sprintf("%s (%s)", state.Title, state.CurrentTrackID))
	case state.CurrentTrackID != "":
		parts = append(parts, state.CurrentTrackID)
	}
	if state.IsMediaReady {
		parts = append(parts, media.FormatTime(state.CurrentTime)+" / "+media.FormatTime(state.Duration))
	}
	parts = append(parts, fmt.Sprintf("vol %d%%", state.Volume))
	if _, err := fmt.Fprintln(out, strings.Join(parts, "  ")); err != nil {
		return err
	}

	flags := make([]string, 0, 4)
	if state.IsRepeatTrack {
		flags = append(flags, "repeat track")
	}
	if state.IsRepeatRange {
		flags = append(flags, fmt.Sprintf("loop %s-%s", media.FormatTime(state.RepeatRange.Start), media.FormatTime(state.RepeatRange.End)))
	}
	if state.IsShuffle {
		flags = append(flags, "shuffle")
	}
	if state.Playlist != "" {
		flags = append(flags, fmt.Sprintf("playlist %s #%d", state.Playlist, state.Cursor))
	}
	if len(flags) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(out, strings.Join(flags, ", "))
	return err
}

func phaseLabel(phase string) string {
	switch phase {
	case "playing":
		return pterm.FgGreen.Sprint(phase)
	case "paused", "loading":
		return pterm.FgYellow.Sprint(phase)
	case "":
		return "unknown"
	default:
		return phase
	}
}

func printPlaylists(out io.Writer, result core.PlaylistListResult) error {
	data := pterm.TableData{{"", "NAME", "TRACKS"}}
	for _, pl := range result.Playlists {
		marker := ""
		if pl.Active {
			marker = "*"
		}
		data = append(data, []string{marker, pl.Name, strconv.Itoa(pl.Tracks)})
	}
	return renderTable(out, data)
}

func printPlaylist(out io.Writer, result core.PlaylistResult) error {
	header := result.Playlist.Name
	if result.Playlist.Active {
		header += " (active)"
	}
	if _, err := fmt.Fprintln(out, header); err != nil {
		return err
	}
	if len(result.Playlist.Tracks) == 0 {
		_, err := fmt.Fprintln(out, "(empty)")
		return err
	}
	data := pterm.TableData{{"INDEX", "ID", "TITLE"}}
	for idx, track := range result.Playlist.Tracks {
		data = append(data, []string{strconv.Itoa(idx), track.ID, track.Title})
	}
	return renderTable(out, data)
}
