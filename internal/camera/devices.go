package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Device describes an enumerated capture device.
type Device struct {
	Path  string
	Label string
}

var labelCaser = cases.Title(language.English)

// ListDevices returns capture devices found under the video4linux sysfs
// class, ordered by device path. An empty list is not an error; it means no
// camera is attached.
func (m *Manager) ListDevices() ([]Device, error) {
	entries, err := os.ReadDir(m.sysfsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", m.sysfsRoot, err)
	}

	devices := make([]Device, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		devices = append(devices, Device{
			Path:  filepath.Join(m.devRoot, name),
			Label: deviceLabel(filepath.Join(m.sysfsRoot, name, "name"), name),
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

func deviceLabel(namePath, fallback string) string {
	data, err := os.ReadFile(namePath)
	if err != nil {
		return fallback
	}
	label := strings.TrimSpace(string(data))
	if label == "" {
		return fallback
	}
	if label == strings.ToLower(label) {
		label = labelCaser.String(label)
	}
	return label
}
