package ledwiz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// USB identifiers.
const (
	VendorID    = 0xFAFA
	BaseProduct = 0x00F0
	MaxUnits    = 16
)

// Unit is one LedWiz found on the system.
type Unit struct {
	Number int    `json:"number"`
	Node   string `json:"node"`
}

// Enumerator finds LedWiz boards by reading sysfs.
type Enumerator struct {
	// SysRoot is the sysfs mount point. Default: /sys.
	SysRoot string

	// DevRoot is the device directory. Default: /dev.
	DevRoot string
}

func (e Enumerator) roots() (string, string) {
	sys, dev := e.SysRoot, e.DevRoot
	if sys == "" {
		sys = "/sys"
	}
	if dev == "" {
		dev = "/dev"
	}
	return sys, dev
}

// Units lists attached LedWiz boards ordered by unit number.
func (e Enumerator) Units() ([]Unit, error) {
	sys, dev := e.roots()
	entries, err := os.ReadDir(filepath.Join(sys, "class", "hidraw"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledwiz: listing hidraw devices: %w", err)
	}

	var units []Unit
	for _, entry := range entries {
		uevent := filepath.Join(sys, "class", "hidraw", entry.Name(), "device", "uevent")
		vendor, product, ok := readHIDID(uevent)
		if !ok || vendor != VendorID || product < BaseProduct || product >= BaseProduct+MaxUnits {
			continue
		}
		units = append(units, Unit{
			Number: int(product-BaseProduct) + 1,
			Node:   filepath.Join(dev, entry.Name()),
		})
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Number < units[j].Number })
	return units, nil
}

// Open opens the hidraw node of unit for writing.
func (e Enumerator) Open(unit int) (io.WriteCloser, error) {
	if unit < 1 || unit > MaxUnits {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUnit, unit)
	}
	units, err := e.Units()
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if u.Number == unit {
			f, err := os.OpenFile(u.Node, os.O_WRONLY, 0)
			if err != nil {
				return nil, fmt.Errorf("ledwiz: opening %s: %w", u.Node, err)
			}
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: unit %d", ErrDeviceNotFound, unit)
}

// readHIDID parses the HID_ID line of a uevent file:
// HID_ID=<bus>:<vendor>:<product>, all hexadecimal.
func readHIDID(path string) (vendor, product uint32, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		id, found := strings.CutPrefix(sc.Text(), "HID_ID=")
		if !found {
			continue
		}
		parts := strings.Split(id, ":")
		if len(parts) != 3 {
			return 0, 0, false
		}
		v, err1 := strconv.ParseUint(parts[1], 16, 32)
		p, err2 := strconv.ParseUint(parts[2], 16, 32)
		if err1 != nil || err2 != nil {
			return 0, 0, false
		}
		return uint32(v), uint32(p), true
	}
	return 0, 0, false
}
