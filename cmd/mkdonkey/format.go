package main

import (
	"github.com/spf13/cobra"

	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkey"
)

var formatCmd = &cobra.Command{
	Use:   "format <device>",
	Short: "Format a device or regular file as a Donkey volume",
	Long:  "format lays down a fresh superblock, free-space lists, and root directory on an already-sized device or regular file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		dev, err := device.Open(path)
		if err != nil {
			return err
		}

		progress := log.NewProgress("Formatting "+path, "", 0)
		fs, err := donkey.Format(dev, flagBytesPerInode)
		if err != nil {
			progress.Finish(false)
			dev.Close()
			return err
		}
		progress.Finish(true)

		log.Printf("formatted %s", path)
		return fs.Close()
	},
}
