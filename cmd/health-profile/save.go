// cmd/health-profile/save.go
package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mcp-health-profile/internal/models"
	"mcp-health-profile/internal/profile"
)

var saveUnit string

var saveCmd = &cobra.Command{
	Use:       "save height|weight|water [value]",
	Short:     "Save a height, weight or water sample dated now",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"height", "weight", "water"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		metric := args[0]
		var value *float64
		if len(args) == 2 {
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			value = &v
		}

		if serverURL != "" {
			c, err := remoteClient()
			if err != nil {
				return err
			}
			result, err := c.Save(ctx, metric, value, saveUnit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", result.Quantity)
			return render(cmd.OutOrStdout(), result.Labels, "table")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		write, fallback, err := writerFor(a.controller, metric)
		if err != nil {
			return err
		}
		q, err := quantityFrom(fallback, value, saveUnit)
		if err != nil {
			return err
		}

		// Loading requests authorization before the write.
		a.controller.Load(ctx)
		if err := write(ctx, q); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", q)
		return render(cmd.OutOrStdout(), a.controller.Snapshot(), "table")
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveUnit, "unit", "", "Unit symbol (default: in for height, kg for weight, mL for water)")
}

func writerFor(c *profile.Controller, metric string) (func(context.Context, models.Quantity) error, models.Quantity, error) {
	switch metric {
	case "height":
		return c.WriteHeight, profile.DefaultHeight, nil
	case "weight":
		return c.WriteWeight, profile.DefaultWeight, nil
	case "water":
		return c.WriteWater, profile.DefaultWater, nil
	default:
		return nil, models.Quantity{}, fmt.Errorf("unknown metric %q: want height, weight or water", metric)
	}
}

func quantityFrom(fallback models.Quantity, value *float64, unit string) (models.Quantity, error) {
	q := fallback
	if value != nil {
		q.Value = *value
	}
	if unit != "" {
		u, err := models.ParseUnit(unit)
		if err != nil {
			return models.Quantity{}, err
		}
		q.Unit = u
	}
	if q.Value <= 0 {
		return models.Quantity{}, fmt.Errorf("value must be positive")
	}
	return q, nil
}
