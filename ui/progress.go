// Package ui renders live collector progress and the end-of-run summary.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/ftahirops/perfdiag/model"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 120 * time.Millisecond

type rowState int

const (
	rowPending rowState = iota
	rowRunning
	rowDone
	rowFailed
)

type row struct {
	domain   model.Domain
	state    rowState
	started  time.Time
	elapsed  time.Duration
	findings int
	gaps     int
	err      string
}

type (
	startedMsg struct {
		domain model.Domain
		at     time.Time
	}
	finishedMsg struct {
		domain   model.Domain
		res      model.DomainResult
		findings int
		at       time.Time
	}
	frameMsg time.Time
	stopMsg  struct{}
)

// progressModel is the bubbletea model behind Progress.
type progressModel struct {
	mode  string
	rows  []row
	frame int
	now   time.Time
	done  bool
}

func newProgressModel(mode string, domains []model.Domain) progressModel {
	m := progressModel{mode: mode, now: time.Now()}
	for _, d := range domains {
		m.rows = append(m.rows, row{domain: d})
	}
	return m
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m progressModel) Init() tea.Cmd { return frame() }

func (m *progressModel) row(d model.Domain) *row {
	for i := range m.rows {
		if m.rows[i].domain == d {
			return &m.rows[i]
		}
	}
	m.rows = append(m.rows, row{domain: d})
	return &m.rows[len(m.rows)-1]
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		r := m.row(msg.domain)
		r.state = rowRunning
		r.started = msg.at
	case finishedMsg:
		r := m.row(msg.domain)
		r.state = rowDone
		if msg.res.Err != "" {
			r.state = rowFailed
			r.err = msg.res.Err
		}
		r.findings = msg.findings
		r.gaps = len(msg.res.Gaps)
		if !r.started.IsZero() {
			r.elapsed = msg.at.Sub(r.started)
		}
	case frameMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		m.now = time.Time(msg)
		if m.done {
			return m, nil
		}
		return m, frame()
	case stopMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("perfdiag") + " " + labelStyle.Render(m.mode+" mode") + "\n")
	for _, r := range m.rows {
		var mark, status string
		switch r.state {
		case rowPending:
			mark = dimStyle.Render("·")
			status = dimStyle.Render("waiting")
		case rowRunning:
			mark = titleStyle.Render(spinnerFrames[m.frame])
			status = labelStyle.Render("collecting " + m.now.Sub(r.started).Truncate(time.Second).String())
		case rowDone:
			mark = okStyle.Render("✓")
			status = findingsLabel(r.findings)
			if r.gaps > 0 {
				status += dimStyle.Render(fmt.Sprintf(", %d gap(s)", r.gaps))
			}
			status += dimStyle.Render(" in " + r.elapsed.Round(100*time.Millisecond).String())
		case rowFailed:
			mark = critStyle.Render("✗")
			status = critStyle.Render(truncate(r.err, 60))
		}
		fmt.Fprintf(&sb, " %s %s%s\n", mark, padRight(string(r.domain), colDomain), status)
	}
	return sb.String()
}

func findingsLabel(n int) string {
	switch n {
	case 0:
		return okStyle.Render("no findings")
	case 1:
		return warnStyle.Render("1 finding")
	}
	return warnStyle.Render(fmt.Sprintf("%d findings", n))
}

// Progress shows one line per collector while a run executes. It satisfies
// the runner's Observer interface and is safe for concurrent use.
type Progress struct {
	prog *tea.Program
	done chan struct{}
	once sync.Once
}

// StartProgress starts rendering to out. Signals stay with the caller.
func StartProgress(out io.Writer, mode string, domains []model.Domain) *Progress {
	p := &Progress{
		prog: tea.NewProgram(newProgressModel(mode, domains),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler()),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, _ = p.prog.Run()
	}()
	return p
}

func (p *Progress) CollectorStarted(d model.Domain) {
	p.prog.Send(startedMsg{domain: d, at: time.Now()})
}

func (p *Progress) CollectorFinished(d model.Domain, res model.DomainResult, findings int) {
	p.prog.Send(finishedMsg{domain: d, res: res, findings: findings, at: time.Now()})
}

// Stop renders the final frame and waits for the program to exit.
func (p *Progress) Stop() {
	p.once.Do(func() {
		p.prog.Send(stopMsg{})
		<-p.done
	})
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
