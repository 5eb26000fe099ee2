//go:build !linux

package hal

import (
	"errors"
	"fmt"
)

// SysfsPin is only available on Linux.
type SysfsPin struct{}

func OpenSysfsPin(root string, num int) (*SysfsPin, error) {
	return nil, fmt.Errorf("gpio %d: sysfs GPIO requires linux: %w", num, errors.ErrUnsupported)
}

func (p *SysfsPin) Set(bool) error { return errors.ErrUnsupported }

func (p *SysfsPin) Close() error { return nil }
