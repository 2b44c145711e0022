// Package tui is the interactive poller: it refreshes the session list,
// checks for due alerts, renders derived statuses continuously and surfaces
// warning/finished overlays with a live countdown.
package tui

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/config"
	"github.com/Carlos-paez/formaciones/internal/event"
	"github.com/Carlos-paez/formaciones/internal/poller"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayWarning
	OverlayFinished
	OverlayCreate
)

const cueInterval = 1200 * time.Millisecond

// Messages driving the timer loop. Each scheduled tick re-arms itself, so
// the four cadences (list refresh, alert check, countdown, cue) run
// independently and never block one another.
type (
	listTickMsg      struct{}
	alertTickMsg     struct{}
	countdownTickMsg struct{ epoch int }
	cueTickMsg       struct{ epoch int }

	eventsMsg struct {
		views []event.View
		err   error
	}
	alertsMsg struct {
		alerts []alert.Alert
		err    error
	}
	createdMsg struct {
		res *poller.CreateResult
		err error
	}
	deletedMsg struct {
		res *poller.DeleteResult
		err error
	}
)

// Model is the root Bubble Tea model.
type Model struct {
	client *poller.Client
	ws     *poller.WSClient
	cfg    config.ClientConfig
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	sessions []event.View
	selected int

	connected bool
	message   string

	// dedup gates alert presentation; it is owned by this model, reset
	// with the process.
	dedup *alert.Dedup

	overlay   Overlay
	active    *alert.Alert
	countdown int // seconds remaining on the warning overlay
	// epoch invalidates in-flight countdown and cue ticks the moment an
	// overlay closes, so no timer outlives its presentation.
	epoch     int
	flashOn   bool
	bellsLeft int

	form createForm

	now func() time.Time
}

// New creates the root model.
func New(client *poller.Client, wsClient *poller.WSClient, cfg config.ClientConfig) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		client: client,
		ws:     wsClient,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		keys:   DefaultKeyMap(),
		dedup:  alert.NewDedup(alert.DefaultDedupCapacity, alert.DefaultDedupMaxAge),
		form:   newCreateForm(),
		now:    time.Now,
	}
}

// Init performs the initial fetches and starts the timers and the push
// listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchEvents(),
		m.checkAlerts(),
		m.scheduleListTick(),
		m.scheduleAlertTick(),
		m.ws.Listen(m.ctx),
	)
}

func (m Model) scheduleListTick() tea.Cmd {
	return tea.Tick(m.cfg.ListRefresh, func(time.Time) tea.Msg { return listTickMsg{} })
}

func (m Model) scheduleAlertTick() tea.Cmd {
	return tea.Tick(m.cfg.AlertCheck, func(time.Time) tea.Msg { return alertTickMsg{} })
}

func (m Model) scheduleCountdown() tea.Cmd {
	epoch := m.epoch
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return countdownTickMsg{epoch: epoch} })
}

func (m Model) scheduleCue() tea.Cmd {
	epoch := m.epoch
	return tea.Tick(cueInterval, func(time.Time) tea.Msg { return cueTickMsg{epoch: epoch} })
}

func (m Model) fetchEvents() tea.Cmd {
	return func() tea.Msg {
		views, err := m.client.Events()
		return eventsMsg{views: views, err: err}
	}
}

func (m Model) checkAlerts() tea.Cmd {
	return func() tea.Msg {
		alerts, err := m.client.Alerts()
		return alertsMsg{alerts: alerts, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.FocusMsg:
		// Regaining focus forces a refresh and alert check outside the
		// normal cadence.
		return m, tea.Batch(m.fetchEvents(), m.checkAlerts())

	case listTickMsg:
		return m, tea.Batch(m.fetchEvents(), m.scheduleListTick())

	case alertTickMsg:
		return m, tea.Batch(m.checkAlerts(), m.scheduleAlertTick())

	case eventsMsg:
		if msg.err != nil {
			// Non-critical: keep prior state; the next tick self-heals.
			m.message = "list refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.sessions = msg.views
		if m.selected >= len(m.sessions) {
			m.selected = max(0, len(m.sessions)-1)
		}
		return m, nil

	case alertsMsg:
		if msg.err != nil {
			return m, nil
		}
		return m.presentAlerts(msg.alerts)

	case poller.WSConnectedMsg:
		m.connected = true
		return m, m.ws.ReadNext()

	case poller.WSDisconnectedMsg:
		m.connected = false
		return m, m.ws.Listen(m.ctx)

	case poller.WSSnapshotMsg:
		m.sessions = msg.Sessions
		if m.selected >= len(m.sessions) {
			m.selected = max(0, len(m.sessions)-1)
		}
		return m, m.ws.ReadNext()

	case poller.WSAlertsMsg:
		model, cmd := m.presentAlerts(msg.Alerts)
		return model, tea.Batch(cmd, m.ws.ReadNext())

	case countdownTickMsg:
		if msg.epoch != m.epoch || m.overlay != OverlayWarning {
			return m, nil
		}
		if m.countdown > 0 {
			m.countdown--
		}
		if m.countdown == 0 {
			return m, nil
		}
		return m, m.scheduleCountdown()

	case cueTickMsg:
		if msg.epoch != m.epoch || m.overlay != OverlayFinished {
			return m, nil
		}
		m.flashOn = !m.flashOn
		if m.bellsLeft > 0 {
			m.bellsLeft--
			ringBell()
		}
		return m, m.scheduleCue()

	case createdMsg:
		if msg.err != nil {
			m.message = "create failed: " + msg.err.Error()
			return m, nil
		}
		m.message = msg.res.Message
		if !msg.res.Success {
			// Leave the form up so the input can be corrected.
			return m, nil
		}
		m.overlay = OverlayNone
		m.form = newCreateForm()
		return m, m.fetchEvents()

	case deletedMsg:
		if msg.err != nil {
			m.message = "delete failed: " + msg.err.Error()
			return m, nil
		}
		m.message = msg.res.Message
		if !msg.res.Success {
			return m, nil
		}
		return m, m.fetchEvents()
	}

	return m, nil
}

// presentAlerts filters freshly due alerts through the dedup cache and
// surfaces the first undelivered one. A finished alert takes the overlay
// even over a showing warning; a warning never replaces anything.
func (m Model) presentAlerts(alerts []alert.Alert) (Model, tea.Cmd) {
	fresh := m.dedup.Filter(alerts, m.now())
	var cmds []tea.Cmd
	for i := range fresh {
		a := fresh[i]
		switch a.Kind {
		case alert.KindWarning:
			if m.overlay != OverlayNone {
				continue
			}
			m.epoch++
			m.overlay = OverlayWarning
			m.active = &a
			m.countdown = a.MinutesRemaining * 60
			cmds = append(cmds, m.scheduleCountdown())
		case alert.KindFinished:
			if m.overlay != OverlayNone && m.overlay != OverlayWarning {
				continue
			}
			m.epoch++
			m.overlay = OverlayFinished
			m.active = &a
			m.flashOn = true
			// First of three bells rings immediately, the cue ticker
			// delivers the rest.
			m.bellsLeft = 2
			ringBell()
			cmds = append(cmds, m.scheduleCue())
		}
	}
	return m, tea.Batch(cmds...)
}

// closeOverlay tears the presentation down. Bumping the epoch cancels any
// countdown or cue tick still in flight — nothing dangles.
func (m Model) closeOverlay() Model {
	m.epoch++
	m.overlay = OverlayNone
	m.active = nil
	m.countdown = 0
	m.flashOn = false
	m.bellsLeft = 0
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay == OverlayCreate {
		return m.handleFormKey(msg)
	}

	if m.overlay != OverlayNone {
		if key.Matches(msg, m.keys.Escape) || key.Matches(msg, m.keys.Enter) {
			return m.closeOverlay(), nil
		}
		if key.Matches(msg, m.keys.Quit) {
			m.cancel()
			m.ws.Close()
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		m.ws.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if len(m.sessions) > 0 {
			m.selected = (m.selected + 1) % len(m.sessions)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.sessions) > 0 {
			m.selected = (m.selected - 1 + len(m.sessions)) % len(m.sessions)
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.fetchEvents(), m.checkAlerts())

	case key.Matches(msg, m.keys.New):
		m.overlay = OverlayCreate
		m.form = newCreateForm()
		return m, m.form.inputs[0].Focus()

	case key.Matches(msg, m.keys.Delete):
		if len(m.sessions) == 0 {
			return m, nil
		}
		id := m.sessions[m.selected].ID
		return m, func() tea.Msg {
			res, err := m.client.DeleteEvent(id)
			return deletedMsg{res: res, err: err}
		}
	}

	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.overlay = OverlayNone
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		back := msg.String() == "shift+tab"
		return m, m.form.cycleFocus(back)

	case key.Matches(msg, m.keys.Enter):
		location, instructor, start, end := m.form.values()
		return m, func() tea.Msg {
			res, err := m.client.CreateEvent(location, instructor, start, end)
			return createdMsg{res: res, err: err}
		}
	}

	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	return m, cmd
}

// ringBell emits the terminal bell. A single BEL byte does not disturb the
// renderer.
func ringBell() {
	os.Stdout.WriteString("\a")
}

// createForm holds the four inputs of the new-session dialog.
type createForm struct {
	inputs [4]textinput.Model
	focus  int
}

func newCreateForm() createForm {
	var f createForm
	placeholders := [4]string{"Location", "Instructor", "Start (HH:MM)", "End (HH:MM)"}
	for i, p := range placeholders {
		in := textinput.New()
		in.Placeholder = p
		in.CharLimit = 64
		f.inputs[i] = in
	}
	return f
}

func (f *createForm) cycleFocus(back bool) tea.Cmd {
	f.inputs[f.focus].Blur()
	if back {
		f.focus = (f.focus - 1 + len(f.inputs)) % len(f.inputs)
	} else {
		f.focus = (f.focus + 1) % len(f.inputs)
	}
	return f.inputs[f.focus].Focus()
}

func (f *createForm) values() (location, instructor, start, end string) {
	return f.inputs[0].Value(), f.inputs[1].Value(), f.inputs[2].Value(), f.inputs[3].Value()
}
