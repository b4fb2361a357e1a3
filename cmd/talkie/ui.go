package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mcwolfapps/TALKIE-CM/pkg/talkie"
)

type consoleStyles struct {
	title lipgloss.Style
	label lipgloss.Style
	help  lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	text  lipgloss.Style
	state map[talkie.SessionState]lipgloss.Style
}

var (
	primary = lipgloss.Color("#00ff9f")
	dim     = lipgloss.Color("#6e7681")
	alert   = lipgloss.Color("#ff5f5f")
	amber   = lipgloss.Color("#ffb000")
)

var styles = consoleStyles{
	title: lipgloss.NewStyle().Bold(true).Foreground(primary).Padding(0, 1),
	label: lipgloss.NewStyle().Bold(true).Foreground(primary),
	help:  lipgloss.NewStyle().Foreground(dim),
	ok:    lipgloss.NewStyle().Foreground(primary),
	err:   lipgloss.NewStyle().Foreground(alert),
	text:  lipgloss.NewStyle().Foreground(lipgloss.Color("#e6edf3")),
	state: map[talkie.SessionState]lipgloss.Style{
		talkie.Idle:         lipgloss.NewStyle().Foreground(dim),
		talkie.Connecting:   lipgloss.NewStyle().Foreground(amber),
		talkie.Connected:    lipgloss.NewStyle().Foreground(primary),
		talkie.Transmitting: lipgloss.NewStyle().Bold(true).Foreground(alert),
		talkie.Receiving:    lipgloss.NewStyle().Bold(true).Foreground(amber),
		talkie.ErrorState:   lipgloss.NewStyle().Bold(true).Foreground(alert),
	},
}

// console serializes writes from the session goroutines and the input loop.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) entry(e talkie.LogEntry) {
	stamp := styles.help.Render(e.Time.Format(time.TimeOnly))
	sender := styles.label.Render(e.Sender)
	var msg string
	switch e.Type {
	case talkie.LogErr:
		msg = styles.err.Render(e.Message)
	case talkie.LogText:
		msg = styles.text.Render(e.Message)
	default:
		msg = styles.help.Render(e.Message)
	}
	c.printf("%s %s %s\n", stamp, sender, msg)
}

func (c *console) state(s talkie.SessionState) {
	style, ok := styles.state[s]
	if !ok {
		style = styles.help
	}
	c.printf("%s\n", style.Render("■ "+string(s)))
}

// roster renders the participant list with a coarse bearing and range.
func (c *console) roster(session *talkie.Session) {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("CHANNEL %s · %d ON AIR", session.ChannelID(), session.ParticipantCount())))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s %s\n", styles.label.Render(session.DisplayName()), styles.help.Render("(you)")))

	for _, blip := range session.Radar(1) {
		rec := blip.Record
		where := styles.help.Render("no fix")
		if !blip.Fallback {
			where = styles.help.Render(fmt.Sprintf("%.0f%% range", blip.Point.Distance()*100))
		}
		tx := ""
		if rec.IsTransmitting {
			tx = styles.state[talkie.Transmitting].Render(" TX")
		}
		age := time.Since(rec.LastSeenAt).Round(time.Second)
		b.WriteString(fmt.Sprintf("  %s%s %s %s\n", rec.DisplayName, tx, where, styles.help.Render(age.String()+" ago")))
	}
	c.printf("%s", b.String())
}

func levelMeter(level float64, width int) string {
	n := int(level * 10 * float64(width))
	if n > width {
		n = width
	}
	if n < 0 {
		n = 0
	}
	return styles.ok.Render(strings.Repeat("█", n)) + styles.help.Render(strings.Repeat("·", width-n))
}

const joinHelp = "enter: push-to-talk on/off · /vox · /who · /level · /name NAME · /quit · anything else is sent as text"
