package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traffic-rl/flowgrid/sim"
)

// spacesCmd prints the observation and action spaces of an experiment
var spacesCmd = &cobra.Command{
	Use:   "spaces",
	Short: "Print the per-agent observation and action spaces as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if err := printSpaces(loadExperiment(cmd), os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func printSpaces(x *sim.Experiment, out io.Writer) error {
	e, _, err := x.Build()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(map[string]any{
		"observation_space": e.ObservationSpace(),
		"action_space":      e.ActionSpace(),
		"agents":            e.Population().Roster(),
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
