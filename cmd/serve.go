package cmd

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traffic-rl/flowgrid/env"
	"github.com/traffic-rl/flowgrid/env/remote"
)

var (
	listenAddr string // HTTP listen address
	codecName  string // Wire codec for frames
)

// serveCmd exposes the environment to remote training processes
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the environment over WebSocket, one episode stream per connection",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		x := loadExperiment(cmd)
		if !remote.ValidCodecs[codecName] {
			logrus.Fatalf("Unknown codec %q; valid: json, msgpack", codecName)
		}
		srv, err := remote.NewServer(func() (*env.MultiEnv, error) {
			e, _, err := x.Build()
			return e, err
		}, codecName)
		if err != nil {
			logrus.Fatalf("Creating server: %v", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/env", srv.Handler())
		logrus.Infof("Serving %s on ws://%s/env (codec %s)", configPath, listenAddr, codecName)
		if err := http.ListenAndServe(listenAddr, mux); err != nil {
			logrus.Fatalf("Server stopped: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "127.0.0.1:8765", "Listen address")
	serveCmd.Flags().StringVar(&codecName, "codec", "json", "Frame codec (json, msgpack)")
}
