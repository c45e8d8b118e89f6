// Package gpio drives the pose deck's ready line, the digital output that
// gates when the sensor MCU may start transmitting.
package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Polarity maps the logical hold/release contract onto electrical levels.
type Polarity int

const (
	// HoldHigh drives the line high to hold the sensor silent and low to
	// release it. This matches the deck hardware, where the sensor MCU waits
	// for a falling edge.
	HoldHigh Polarity = iota
	// HoldLow inverts the mapping for boards with an inverting level shifter.
	HoldLow
)

func (p Polarity) levels() (hold, release byte) {
	if p == HoldLow {
		return '0', '1'
	}
	return '1', '0'
}

// SysfsLine drives a GPIO through the Linux sysfs interface. It implements
// the handshake coordinator's ReadyLine contract.
type SysfsLine struct {
	pin      int
	polarity Polarity
	base     string // sysfs root, overridable in tests
}

// NewSysfsLine returns a line for the given GPIO number. The pin is not
// touched until ConfigureOutput.
func NewSysfsLine(pin int, polarity Polarity) *SysfsLine {
	return &SysfsLine{pin: pin, polarity: polarity, base: "/sys/class/gpio"}
}

func (l *SysfsLine) pinDir() string {
	return filepath.Join(l.base, fmt.Sprintf("gpio%d", l.pin))
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ConfigureOutput exports the pin if needed and sets its direction to output.
func (l *SysfsLine) ConfigureOutput() error {
	if _, err := os.Stat(l.pinDir()); os.IsNotExist(err) {
		export := filepath.Join(l.base, "export")
		if err := writeFile(export, []byte(strconv.Itoa(l.pin))); err != nil {
			return fmt.Errorf("export gpio%d: %w", l.pin, err)
		}
	}
	if err := writeFile(filepath.Join(l.pinDir(), "direction"), []byte("out")); err != nil {
		return fmt.Errorf("set gpio%d direction: %w", l.pin, err)
	}
	return nil
}

func (l *SysfsLine) set(level byte) error {
	return writeFile(filepath.Join(l.pinDir(), "value"), []byte{level})
}

// Hold drives the line to the level that keeps the sensor silent.
func (l *SysfsLine) Hold() error {
	hold, _ := l.polarity.levels()
	return l.set(hold)
}

// Release drives the line to the level that permits the sensor to transmit.
func (l *SysfsLine) Release() error {
	_, release := l.polarity.levels()
	return l.set(release)
}

// FakeLine records transitions for tests.
type FakeLine struct {
	mu          sync.Mutex
	transitions []string
}

// NewFakeLine returns an empty recording line.
func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

func (l *FakeLine) record(s string) error {
	l.mu.Lock()
	l.transitions = append(l.transitions, s)
	l.mu.Unlock()
	return nil
}

func (l *FakeLine) ConfigureOutput() error { return l.record("configure") }
func (l *FakeLine) Hold() error            { return l.record("hold") }
func (l *FakeLine) Release() error         { return l.record("release") }

// Transitions returns the recorded transition names in order.
func (l *FakeLine) Transitions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.transitions))
	copy(out, l.transitions)
	return out
}
