package main

import (
	"fmt"
	"log"
	"os"

	_ "github.com/samuelfneumann/rlv/environment/classiccontrol/acrobot"
	"github.com/samuelfneumann/rlv/experiment"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rlv",
		Short: "Soft Actor-Critic with action-free observations",
		Long: "rlv trains Soft Actor-Critic agents on batches which fuse " +
			"environment\ninteractions with action-free observations " +
			"labelled by an inverse\ndynamics model.",
		SilenceUsage: true,
	}
	root.AddCommand(trainCommand(), collectCommand())
	return root
}

func trainCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fill the action-free buffer, warm up, and train online",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := experiment.Load(configPath)
			if err != nil {
				return err
			}
			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

			result, err := experiment.Train(c, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d episodes in %d steps, "+
				"outputs written to %v\n", result.Episodes, result.Steps,
				c.Run.OutputDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path of the YAML or JSON configuration file")
	cmd.MarkFlagRequired("config")
	return cmd
}

func collectCommand() *cobra.Command {
	var configPath, out string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Train a SAC agent and save its interactions as a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := experiment.Load(configPath)
			if err != nil {
				return err
			}
			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

			_, err = experiment.Collect(c, out, logger)
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path of the YAML or JSON configuration file")
	cmd.Flags().StringVarP(&out, "out", "o", "dataset.gob",
		"path of the dataset to write")
	cmd.MarkFlagRequired("config")
	return cmd
}
