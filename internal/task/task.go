// Package task runs long engine operations in the background with a
// cancellable progress view.
package task

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Report receives the progress of a job in bytes.
type Report func(done, total int64)

// Options configures Run.
type Options struct {
	// Interactive shows a spinner and accepts ctrl+c, esc or q to cancel.
	// Otherwise the job runs on the calling goroutine.
	Interactive bool

	Input  io.Reader
	Output io.Writer

	// Renderer styles the view. Defaults to a renderer on Output.
	Renderer *lipgloss.Renderer
}

// Run executes job and returns its result. The job's context is cancelled
// when ctx ends or, in interactive mode, when the user asks to cancel.
func Run[T any](ctx context.Context, title string, job func(context.Context, Report) (T, error), opts Options) (T, error) {
	if !opts.Interactive {
		return job(ctx, func(int64, int64) {})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer := opts.Renderer
	if renderer == nil {
		renderer = lipgloss.NewRenderer(opts.Output)
	}

	p := tea.NewProgram(
		newModel(title, cancel, renderer),
		tea.WithContext(ctx),
		tea.WithInput(opts.Input),
		tea.WithOutput(opts.Output),
	)

	var (
		result T
		jobErr error
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		result, jobErr = job(ctx, throttle(p.Send))
		p.Send(doneMsg{})
	}()

	_, runErr := p.Run()
	if runErr != nil {
		cancel()
	}
	wg.Wait()

	if jobErr != nil {
		return result, jobErr
	}
	if runErr != nil && ctx.Err() == nil {
		return result, fmt.Errorf("progress view: %w", runErr)
	}
	return result, nil
}

const reportInterval = 100 * time.Millisecond

// throttle limits progress messages to one per reportInterval, always
// passing the final report through.
func throttle(send func(tea.Msg)) Report {
	var last time.Time
	return func(done, total int64) {
		now := time.Now()
		if done < total && now.Sub(last) < reportInterval {
			return
		}
		last = now
		send(progressMsg{done: done, total: total})
	}
}

type progressMsg struct {
	done, total int64
}

type doneMsg struct{}

type model struct {
	title     string
	spinner   spinner.Model
	cancel    context.CancelFunc
	label     lipgloss.Style
	hint      lipgloss.Style
	done      int64
	total     int64
	cancelled bool
	finished  bool
}

func newModel(title string, cancel context.CancelFunc, r *lipgloss.Renderer) model {
	return model{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(r.NewStyle().Foreground(lipgloss.Color("#00FFFF")))),
		cancel:  cancel,
		label:   r.NewStyle().Bold(true),
		hint:    r.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			if !m.cancelled {
				m.cancelled = true
				m.cancel()
			}
		}
		return m, nil

	case progressMsg:
		m.done, m.total = msg.done, msg.total
		return m, nil

	case doneMsg:
		m.finished = true
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m model) View() string {
	if m.finished {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.label.Render(m.title))
	if m.total > 0 {
		pct := float64(m.done) * 100 / float64(m.total)
		fmt.Fprintf(&b, "  %s / %s (%.0f%%)", humanize.IBytes(uint64(m.done)), humanize.IBytes(uint64(m.total)), pct)
	}
	b.WriteString("  ")
	if m.cancelled {
		b.WriteString(m.hint.Render("cancelling..."))
	} else {
		b.WriteString(m.hint.Render("esc to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}
