package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dkfs/donkey/pkg/elog"
)

var log elog.View

var (
	flagVerbose    bool
	flagDebug      bool
	flagAllowOther bool
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

	mountCmd.Flags().BoolVar(&flagAllowOther, "allow-other", false, "allow other users to access the mount")

	rootCmd.AddCommand(mountCmd)
}

var rootCmd = &cobra.Command{
	Use:   "mtdonkey",
	Short: "Mount a Donkey filesystem volume",
	Long:  "mtdonkey mounts a Donkey volume at a directory and serves kernel requests until unmounted.",
}
