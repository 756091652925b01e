package main

import (
	"fmt"
	"os"

	"github.com/sisatech/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dkfs/donkey/pkg/block"
	"github.com/dkfs/donkey/pkg/device"
	"github.com/dkfs/donkey/pkg/donkey"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <device>",
	Short: "Print superblock counters and the root directory of an existing volume",
	Long:  "inspect opens an already-formatted device and reports its statfs counters and root directory listing, without modifying it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		dev, err := device.Open(path)
		if err != nil {
			return err
		}

		fs, err := donkey.Mount(dev)
		if err != nil {
			dev.Close()
			return err
		}
		defer fs.Close()

		sv := fs.Statfs()
		log.Printf("block size:    %d", sv.Bsize)
		log.Printf("blocks:        %d total, %d free", sv.Blocks, sv.Bfree)
		log.Printf("inodes:        %d total, %d free", sv.Files, sv.Ffree)
		log.Printf("max name len:  %d", sv.NameLen)

		h, err := fs.OpenDir(block.RootInode)
		if err != nil {
			return err
		}
		defer h.Release()

		table := [][]string{{"", "", ""}}
		for _, e := range h.Readdir(0) {
			st, err := fs.Getattr(e.Ino)
			if err != nil {
				return err
			}
			table = append(table, []string{fmt.Sprintf("%d", e.Ino), fmt.Sprintf("%#o", uint16(st.Mode)), e.Name})
		}
		printTable(table)
		return nil
	},
}

func printTable(vals [][]string) {
	if len(vals) == 0 {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	for i := 1; i < len(vals); i++ {
		table.Append(vals[i])
	}
	table.Render()
}
