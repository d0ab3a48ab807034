package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openskills/skillbridge/internal/model"
)

// DevicePickerAction represents the outcome of the device picker.
type DevicePickerAction int

const (
	// DevicePickerActionNone means the user quit without choosing.
	DevicePickerActionNone DevicePickerAction = iota
	// DevicePickerActionSelect means a device was chosen.
	DevicePickerActionSelect
)

// DevicePickerResult contains the picker outcome.
type DevicePickerResult struct {
	Action DevicePickerAction
	Device model.Device
}

type devicePickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

func defaultDevicePickerKeyMap() devicePickerKeyMap {
	return devicePickerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "select"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

var devicePickerStyles = struct {
	Title    lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Detail   lipgloss.Style
	Help     lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Item:     lipgloss.NewStyle().Padding(0, 2),
	Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 2),
	Detail:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 4),
	Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
}

// DevicePickerModel is the BubbleTea model for choosing among several
// connected devices.
type DevicePickerModel struct {
	devices  []model.Device
	cursor   int
	keys     devicePickerKeyMap
	result   DevicePickerResult
	quitting bool
}

// NewDevicePickerModel creates a picker over the given devices.
func NewDevicePickerModel(devices []model.Device) DevicePickerModel {
	return DevicePickerModel{
		devices: devices,
		keys:    defaultDevicePickerKeyMap(),
	}
}

// Init implements tea.Model.
func (m DevicePickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.devices)-1 {
				m.cursor++
			}
			return m, nil

		case key.Matches(msg, m.keys.Select):
			selected := m.devices[m.cursor]
			if !selected.Ready() {
				return m, nil
			}
			m.result = DevicePickerResult{
				Action: DevicePickerActionSelect,
				Device: selected,
			}
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m DevicePickerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(devicePickerStyles.Title.Render("Select a device"))
	b.WriteString("\n\n")

	for i, d := range m.devices {
		label := d.Label()
		if !d.Ready() {
			label = fmt.Sprintf("%s [%s]", label, d.State)
		}

		var line string
		switch {
		case i == m.cursor && d.Ready():
			line = devicePickerStyles.Selected.Render("> " + label)
		case i == m.cursor:
			line = devicePickerStyles.Item.Render("> " + label)
		case !d.Ready():
			line = devicePickerStyles.Detail.Render("  " + label)
		default:
			line = devicePickerStyles.Item.Render("  " + label)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(devicePickerStyles.Help.Render("↑/↓ move • enter select • q quit"))
	b.WriteString("\n")

	return b.String()
}

// Result returns the picker outcome.
func (m DevicePickerModel) Result() DevicePickerResult {
	return m.result
}

// PickDevice runs the picker and returns the chosen device.
func PickDevice(devices []model.Device) (model.Device, error) {
	final, err := Run(NewDevicePickerModel(devices))
	if err != nil {
		return model.Device{}, fmt.Errorf("device picker: %w", err)
	}

	picker, ok := final.(DevicePickerModel)
	if !ok {
		return model.Device{}, fmt.Errorf("device picker returned unexpected model")
	}
	if picker.Result().Action != DevicePickerActionSelect {
		return model.Device{}, fmt.Errorf("no device selected")
	}
	return picker.Result().Device, nil
}
