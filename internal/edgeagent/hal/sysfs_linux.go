//go:build linux

package hal

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// SysfsPin is a GPIO output driven through the sysfs interface.
type SysfsPin struct {
	root  string
	num   int
	value *os.File
}

var _ Pin = (*SysfsPin)(nil)

// OpenSysfsPin exports GPIO num under root if needed and configures it as
// an output.
func OpenSysfsPin(root string, num int) (*SysfsPin, error) {
	dir := filepath.Join(root, "gpio"+strconv.Itoa(num))
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := writeFile(filepath.Join(root, "export"), strconv.Itoa(num)); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", num, err)
		}
	}

	if err := writeFile(filepath.Join(dir, "direction"), "out"); err != nil {
		return nil, fmt.Errorf("set gpio %d direction: %w", num, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "value"), os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open gpio %d value: %w", num, err)
	}

	return &SysfsPin{root: root, num: num, value: f}, nil
}

func (p *SysfsPin) Set(high bool) error {
	v := "0"
	if high {
		v = "1"
	}
	if _, err := p.value.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := p.value.WriteString(v)
	return err
}

func (p *SysfsPin) Close() error {
	err := p.value.Close()
	if uerr := writeFile(filepath.Join(p.root, "unexport"), strconv.Itoa(p.num)); uerr != nil {
		err = errors.Join(err, uerr)
	}
	return err
}

func writeFile(path, s string) error {
	return os.WriteFile(path, []byte(s), 0o644)
}
