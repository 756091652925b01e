package device

import "os"

// Open opens path as a Device, choosing the regular-file or block/char
// device adapter based on the file's mode, per §6. Use CreateFile directly
// when provisioning a brand-new image.
func Open(path string) (Device, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeDevice != 0 {
		return OpenBlockDevice(path)
	}
	return OpenFile(path, DefaultBlockSize)
}
