package main

import (
	stdlog "log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkey"
	"github.com/dkfs/donkey/pkg/fusebridge"
)

var mountCmd = &cobra.Command{
	Use:   "mount <device> <mountpoint>",
	Short: "Mount a Donkey volume at a directory",
	Long:  "mount opens an already-formatted device and serves it over FUSE at the given mountpoint until unmounted.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		devPath, mountpoint := args[0], args[1]

		dev, err := device.Open(devPath)
		if err != nil {
			return err
		}

		fs, err := donkey.Mount(dev)
		if err != nil {
			dev.Close()
			return err
		}
		defer func() {
			if err := fs.Close(); err != nil {
				stdlog.Printf("mtdonkey: close: %v", err)
			}
		}()

		bridge := fusebridge.New(fs)

		log.Printf("mounting %s at %s", devPath, mountpoint)
		return fusebridge.Mount(mountpoint, bridge, fusebridge.MountOptions{
			AllowOther: flagAllowOther,
		}, stdlog.New(os.Stderr, "mtdonkey: ", stdlog.LstdFlags))
	},
}
