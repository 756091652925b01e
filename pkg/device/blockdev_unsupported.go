//go:build !linux && !darwin && !freebsd

package device

import "github.com/dkfs/donkey/pkg/donkeyerr"

// OpenBlockDevice is unavailable on platforms without a known media-size
// ioctl; regular-file images and the in-memory device remain usable.
func OpenBlockDevice(path string) (Device, error) {
	return nil, donkeyerr.New(donkeyerr.NotSupported, "raw block devices are not supported on this platform")
}
