package gpio

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeSysfs lays out the files a kernel would expose for an exported pin.
func fakeSysfs(t *testing.T, pin string) string {
	t.Helper()
	base := t.TempDir()
	if err := os.WriteFile(filepath.Join(base, "export"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(base, "gpio"+pin)
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"direction", "value"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return base
}

func readFileString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSysfsLineDrivesLevels(t *testing.T) {
	base := fakeSysfs(t, "8")
	line := NewSysfsLine(8, HoldHigh)
	line.base = base

	if err := line.ConfigureOutput(); err != nil {
		t.Fatalf("ConfigureOutput: %v", err)
	}
	if got := readFileString(t, filepath.Join(base, "gpio8", "direction")); got != "out" {
		t.Errorf("direction = %q, want out", got)
	}

	if err := line.Hold(); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if got := readFileString(t, filepath.Join(base, "gpio8", "value")); got != "1" {
		t.Errorf("hold level = %q, want 1", got)
	}

	if err := line.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := readFileString(t, filepath.Join(base, "gpio8", "value")); got != "0" {
		t.Errorf("release level = %q, want 0", got)
	}
}

func TestSysfsLineInvertedPolarity(t *testing.T) {
	base := fakeSysfs(t, "8")
	line := NewSysfsLine(8, HoldLow)
	line.base = base

	if err := line.Hold(); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if got := readFileString(t, filepath.Join(base, "gpio8", "value")); got != "0" {
		t.Errorf("inverted hold level = %q, want 0", got)
	}
}

func TestFakeLineRecordsOrder(t *testing.T) {
	line := NewFakeLine()
	line.ConfigureOutput()
	line.Hold()
	line.Release()

	got := line.Transitions()
	want := []string{"configure", "hold", "release"}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}
}
