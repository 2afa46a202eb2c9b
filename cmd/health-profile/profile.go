// cmd/health-profile/profile.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"mcp-health-profile/internal/client"
	"mcp-health-profile/internal/config"
	"mcp-health-profile/internal/profile"
)

var (
	outputFormat string
	serverURL    string
	apiKey       string
	withHeart    bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Load and print the health profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var labels profile.Labels
		if serverURL != "" {
			c, err := remoteClient()
			if err != nil {
				return err
			}
			if labels, err = c.Profile(ctx); err != nil {
				return err
			}
		} else {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			labels = a.controller.Load(ctx)
			if withHeart {
				a.controller.ReadHeartRate(ctx)
			}
		}

		return render(cmd.OutOrStdout(), labels, outputFormat)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{profileCmd, saveCmd, setCmd} {
		cmd.Flags().StringVar(&serverURL, "server", "", "URL of a running health-profile server (default: use the local store)")
		cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for --server (default: server.api_key from config)")
	}
	profileCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format: table, json or yaml")
	profileCmd.Flags().BoolVar(&withHeart, "heart-rate", false, "Also read the latest heart rate into the log")
}

func remoteClient() (*client.Client, error) {
	key := apiKey
	if key == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		key = cfg.Server.APIKey
	}
	return client.New(serverURL, key), nil
}

func render(w io.Writer, labels profile.Labels, format string) error {
	switch format {
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, row := range labels.Rows() {
			fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(labels)
	case "yaml":
		out, err := yaml.Marshal(labels)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
