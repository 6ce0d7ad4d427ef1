package task

import (
	"bytes"
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainRenderer() *lipgloss.Renderer {
	return lipgloss.NewRenderer(&bytes.Buffer{}, termenv.WithProfile(termenv.Ascii))
}

func TestRunDirect(t *testing.T) {
	var reports int
	got, err := Run(context.Background(), "work", func(ctx context.Context, report Report) (int, error) {
		report(1, 2)
		reports++
		return 42, nil
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, reports)
}

func TestRunDirectPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(context.Background(), "work", func(ctx context.Context, report Report) (string, error) {
		return "", boom
	}, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestRunInteractive(t *testing.T) {
	var out bytes.Buffer
	got, err := Run(context.Background(), "hashing", func(ctx context.Context, report Report) (string, error) {
		report(50, 100)
		report(100, 100)
		return "done", nil
	}, Options{Interactive: true, Output: &out, Renderer: plainRenderer()})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestRunInteractiveParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Run(ctx, "waiting", func(ctx context.Context, report Report) (int, error) {
		cancel()
		<-ctx.Done()
		return 0, ctx.Err()
	}, Options{Interactive: true, Output: &bytes.Buffer{}, Renderer: plainRenderer()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModelCancelKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	} {
		ctx, cancel := context.WithCancel(context.Background())
		m := newModel("diff", cancel, plainRenderer())

		updated, cmd := m.Update(key)
		assert.Nil(t, cmd, key.String())
		assert.ErrorIs(t, ctx.Err(), context.Canceled, key.String())

		view := updated.(model).View()
		assert.Contains(t, view, "cancelling...")
	}
}

func TestModelProgressAndDone(t *testing.T) {
	m := newModel("diff", func() {}, plainRenderer())
	assert.Contains(t, m.View(), "diff")
	assert.Contains(t, m.View(), "esc to cancel")

	updated, _ := m.Update(progressMsg{done: 512, total: 1024})
	view := updated.(model).View()
	assert.Contains(t, view, "512 B / 1.0 KiB (50%)")

	updated, cmd := updated.Update(doneMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, updated.(model).View())
}

func TestThrottle(t *testing.T) {
	var got []progressMsg
	report := throttle(func(msg tea.Msg) { got = append(got, msg.(progressMsg)) })
	for i := int64(1); i <= 1000; i++ {
		report(i, 1000)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, progressMsg{done: 1, total: 1000}, got[0])
	assert.Equal(t, progressMsg{done: 1000, total: 1000}, got[len(got)-1])
	assert.Less(t, len(got), 1000)
}
