// Package console renders songs and notifications on a terminal.
package console

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/Alexander-D-Karpov/ampstream/internal/api"
	"github.com/Alexander-D-Karpov/ampstream/pkg/types"
)

// ErrCancelled is returned by a Prompt when the user backs out.
var ErrCancelled = errors.New("selection cancelled")

// Prompt asks the user to pick one of options and returns its index.
type Prompt func(message string, options []string) (int, error)

// SurveyPrompt is the interactive Prompt used on a real terminal.
func SurveyPrompt(message string, options []string) (int, error) {
	prompt := &survey.Select{
		Message:  message,
		Options:  options,
		PageSize: 10,
	}

	selectedIndex := 0
	if err := survey.AskOne(prompt, &selectedIndex); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return 0, ErrCancelled
		}
		return 0, err
	}
	return selectedIndex, nil
}

// Renderer prints song lists as tables. With a Prompt it also asks for a
// selection and reports it through onSelect.
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	prompt Prompt
	title  *color.Color
	accent *color.Color
	marked func(song *types.Song) bool
}

var _ types.Renderer = (*Renderer)(nil)

func NewRenderer(out io.Writer, prompt Prompt) *Renderer {
	return &Renderer{
		out:    out,
		prompt: prompt,
		title:  color.New(color.FgHiWhite, color.Bold),
		accent: color.New(color.FgCyan),
	}
}

// SetMarker installs a predicate; songs it accepts get a ♥ before the title.
func (r *Renderer) SetMarker(marked func(song *types.Song) bool) {
	r.mu.Lock()
	r.marked = marked
	r.mu.Unlock()
}

// Render draws songs under the container heading. Selection only happens
// when both a Prompt and onSelect are present.
func (r *Renderer) Render(container string, songs []*types.Song, onSelect func(song *types.Song, index int)) {
	r.mu.Lock()
	r.title.Fprintln(r.out, heading(container))
	if len(songs) == 0 {
		fmt.Fprintln(r.out, "  No songs.")
		r.mu.Unlock()
		return
	}

	rows := make([][]string, len(songs))
	for i, song := range songs {
		title := truncate(song.Title, 48)
		if r.marked != nil && r.marked(song) {
			title = "♥ " + title
		}
		// Views arrive already formatted by the normalizer.
		rows[i] = []string{strconv.Itoa(i + 1), title, truncate(song.Artist, 28), song.Duration, song.Views}
	}
	r.tableLocked([]string{"#", "Title", "Artist", "Duration", "Views"}, rows)
	r.mu.Unlock()

	if r.prompt == nil || onSelect == nil {
		return
	}

	options := make([]string, len(songs))
	for i, song := range songs {
		options[i] = fmt.Sprintf("%d. %s - %s", i+1, song.Title, song.Artist)
	}

	idx, err := r.prompt("Select a song to play:", options)
	if err != nil || idx < 0 || idx >= len(songs) {
		return
	}
	onSelect(songs[idx], idx)
}

// Table prints rows under a heading in the same layout as Render.
func (r *Renderer) Table(container string, header []string, rows [][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.title.Fprintln(r.out, heading(container))
	if len(rows) == 0 {
		fmt.Fprintln(r.out, "  Nothing here.")
		return
	}
	r.tableLocked(header, rows)
}

func (r *Renderer) tableLocked(header []string, rows [][]string) {
	table := tablewriter.NewWriter(r.out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetRowLine(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// NowPlaying redraws a single status line for the current song.
func (r *Renderer) NowPlaying(song *types.Song, position, duration time.Duration) {
	if song == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := api.FormatTime(position.Seconds())
	total := song.Duration
	if duration > 0 {
		total = api.FormatTime(duration.Seconds())
	}
	if total == "" {
		total = "--:--"
	}
	fmt.Fprintf(r.out, "\r%s %s  %s / %s ", r.accent.Sprint("▶"), truncate(song.Title, 48), elapsed, total)
}

// Line prints a plain line, keeping output ordered with Render.
func (r *Renderer) Line(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format+"\n", args...)
}

func heading(container string) string {
	container = strings.TrimSpace(container)
	if container == "" {
		return "Songs"
	}
	return strings.ToUpper(container[:1]) + container[1:]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
