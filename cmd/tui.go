// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 ximing766

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ximing766/dk6flash/pkg/ota"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	phaseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

type flashProgressMsg ota.Progress

type flashDoneMsg struct {
	result *ota.Result
	err    error
}

// flashModel renders a single flashing session: phase, progress bar and
// transfer counter, then the final result or error.
type flashModel struct {
	title      string
	bar        progress.Model
	spin       spinner.Model
	cancel     context.CancelFunc
	last       ota.Progress
	cancelling bool
	done       bool
	result     *ota.Result
	err        error
}

func newFlashModel(title string, cancel context.CancelFunc) flashModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = phaseStyle
	return flashModel{title: title, bar: bar, spin: sp, cancel: cancel}
}

func (m flashModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m flashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling && !m.done {
				m.cancelling = true
				m.cancel()
			}
			return m, nil
		}

	case flashProgressMsg:
		m.last = ota.Progress(msg)
		return m, m.bar.SetPercent(float64(m.last.Percent) / 100)

	case flashDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		barModel, cmd := m.bar.Update(msg)
		m.bar = barModel.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m flashModel) View() string {
	s := titleStyle.Render(m.title) + "\n\n"

	if m.done {
		// The final summary is printed after the program exits.
		return s
	}

	phase := m.last.Phase.String()
	if m.cancelling {
		phase = "Cancelling (waiting for transfer boundary)"
	}
	s += fmt.Sprintf("%s %s\n\n", m.spin.View(), phaseStyle.Render(phase))
	s += "  " + m.bar.View() + fmt.Sprintf(" %3d%%\n\n", m.last.Percent)

	if m.last.Phase == ota.PhaseProgram && m.last.Transfers > 0 {
		s += dimStyle.Render(fmt.Sprintf("  transfer %d/%d  %d bytes  %s",
			m.last.Transfer, m.last.Transfers, m.last.BytesWritten,
			formatDuration(m.last.Elapsed))) + "\n"
	}

	s += "\n" + dimStyle.Render("  ctrl+c to cancel") + "\n"
	return s
}

// runTUISession runs the session under the progress UI. The flashing
// goroutine feeds the model via p.Send and never touches the terminal.
func runTUISession(conn Connection, opts []ota.Option, title string, run func(context.Context, *ota.Flasher) (*ota.Result, error)) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(newFlashModel(title, cancel))

	opts = append(opts, ota.WithProgress(func(pr ota.Progress) {
		p.Send(flashProgressMsg(pr))
	}))
	flasher := ota.New(conn, opts...)

	go func() {
		result, err := run(ctx, flasher)
		p.Send(flashDoneMsg{result: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI: %w", err)
	}

	m := final.(flashModel)
	if m.err != nil {
		if errors.Is(m.err, ota.ErrCancelled) {
			fmt.Println(warnStyle.Render("Flash cancelled") + dimStyle.Render(" (device left partially programmed)"))
			return nil
		}
		fmt.Println(errorStyle.Render("Flash failed: " + m.err.Error()))
		return m.err
	}
	if m.result != nil {
		if m.result.Verified {
			fmt.Println(successStyle.Render("Flash complete"))
		} else if m.result.Warning != nil {
			fmt.Println(warnStyle.Render("Flash complete with warning"))
		}
		printResult(m.result)
	}
	return nil
}

// formatDuration renders an elapsed time as m:ss or plain seconds.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
