package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openskills/skillbridge/internal/model"
)

func pickerDevices() []model.Device {
	return []model.Device{
		{Serial: "emulator-5554", Name: "Pixel 7", Platform: model.Android, State: "device"},
		{Serial: "R58M123ABC", Name: "Galaxy S21", Platform: model.Android, State: "unauthorized"},
		{Serial: "00008110-AABBCC", Name: "iPhone 15", Platform: model.IOS},
	}
}

func TestDevicePickerNavigation(t *testing.T) {
	m := NewDevicePickerModel(pickerDevices())

	down := tea.KeyMsg{Type: tea.KeyDown}
	newModel, _ := m.Update(down)
	m = newModel.(DevicePickerModel)
	if m.cursor != 1 {
		t.Errorf("cursor = %d after down, want 1", m.cursor)
	}

	up := tea.KeyMsg{Type: tea.KeyUp}
	newModel, _ = m.Update(up)
	m = newModel.(DevicePickerModel)
	if m.cursor != 0 {
		t.Errorf("cursor = %d after up, want 0", m.cursor)
	}

	// Cursor stays in bounds.
	newModel, _ = m.Update(up)
	m = newModel.(DevicePickerModel)
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestDevicePickerSelect(t *testing.T) {
	m := NewDevicePickerModel(pickerDevices())

	enter := tea.KeyMsg{Type: tea.KeyEnter}
	newModel, cmd := m.Update(enter)
	m = newModel.(DevicePickerModel)

	if cmd == nil {
		t.Error("expected quit command after selection")
	}
	result := m.Result()
	if result.Action != DevicePickerActionSelect {
		t.Fatalf("Action = %d, want DevicePickerActionSelect", result.Action)
	}
	if result.Device.Serial != "emulator-5554" {
		t.Errorf("Device.Serial = %q, want %q", result.Device.Serial, "emulator-5554")
	}
}

func TestDevicePickerRejectsUnreadyDevice(t *testing.T) {
	m := NewDevicePickerModel(pickerDevices())

	down := tea.KeyMsg{Type: tea.KeyDown}
	newModel, _ := m.Update(down)
	m = newModel.(DevicePickerModel)

	enter := tea.KeyMsg{Type: tea.KeyEnter}
	newModel, _ = m.Update(enter)
	m = newModel.(DevicePickerModel)

	if m.Result().Action != DevicePickerActionNone {
		t.Error("unauthorized device should not be selectable")
	}
}

func TestDevicePickerQuit(t *testing.T) {
	m := NewDevicePickerModel(pickerDevices())

	quit := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
	newModel, cmd := m.Update(quit)
	m = newModel.(DevicePickerModel)

	if cmd == nil {
		t.Error("expected quit command")
	}
	if m.Result().Action != DevicePickerActionNone {
		t.Errorf("Action = %d, want DevicePickerActionNone", m.Result().Action)
	}
}

func TestDevicePickerView(t *testing.T) {
	m := NewDevicePickerModel(pickerDevices())
	view := m.View()

	if !strings.Contains(view, "Pixel 7 (emulator-5554)") {
		t.Errorf("view missing ready device label:\n%s", view)
	}
	if !strings.Contains(view, "[unauthorized]") {
		t.Errorf("view missing unready device state:\n%s", view)
	}
}
