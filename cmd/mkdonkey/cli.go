package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dkfs/donkey/pkg/elog"
)

var log elog.View

var (
	flagVerbose       bool
	flagDebug         bool
	flagBytesPerInode uint64
)

func commandInit() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger := &elog.CLI{}
		logrus.SetFormatter(logger)
		logrus.SetLevel(logrus.TraceLevel)

		if flagDebug {
			logger.IsDebug = true
			logger.IsVerbose = true
		} else if flagVerbose {
			logger.IsVerbose = true
		}

		log = logger
		return nil
	}

	formatCmd.Flags().Uint64VarP(&flagBytesPerInode, "bytes-per-inode", "i", 0, "bytes/inode ratio (0 uses the default)")

	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(inspectCmd)
}

var rootCmd = &cobra.Command{
	Use:   "mkdonkey",
	Short: "Make and inspect Donkey filesystem volumes",
	Long:  "mkdonkey formats a device or regular file as a Donkey filesystem volume and inspects existing ones.",
}
