// cmd/health-profile/set.go
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mcp-health-profile/internal/models"
)

var (
	setDOB   string
	setSex   int
	setBlood int
)

var setCmd = &cobra.Command{
	Use:     "set",
	Short:   "Set date of birth, biological sex and blood type",
	Example: `  health-profile set --dob 1990-03-07 --sex 1 --blood-type 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		flags := cmd.Flags()
		if !flags.Changed("dob") && !flags.Changed("sex") && !flags.Changed("blood-type") {
			return fmt.Errorf("at least one of --dob, --sex or --blood-type is required")
		}

		if serverURL != "" {
			c, err := remoteClient()
			if err != nil {
				return err
			}
			toolArgs := map[string]interface{}{}
			if flags.Changed("dob") {
				toolArgs["date_of_birth"] = setDOB
			}
			if flags.Changed("sex") {
				toolArgs["biological_sex"] = setSex
			}
			if flags.Changed("blood-type") {
				toolArgs["blood_type"] = setBlood
			}
			if _, err := c.CallTool(ctx, "set_characteristics", toolArgs); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Characteristics updated")
			return nil
		}

		var dob *models.DateComponents
		if flags.Changed("dob") {
			parsed, err := models.ParseDateComponents(setDOB)
			if err != nil {
				return err
			}
			dob = &parsed
		}
		var sex *models.BiologicalSex
		if flags.Changed("sex") {
			v := models.BiologicalSex(setSex)
			sex = &v
		}
		var blood *models.BloodType
		if flags.Changed("blood-type") {
			v := models.BloodType(setBlood)
			blood = &v
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SetCharacteristics(ctx, dob, sex, blood); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Characteristics updated")
		return nil
	},
}

func init() {
	setCmd.Flags().StringVar(&setDOB, "dob", "", "Date of birth (YYYY-MM-DD)")
	setCmd.Flags().IntVar(&setSex, "sex", 0, "Biological sex: 0 not set, 1 female, 2 male, 3 other")
	setCmd.Flags().IntVar(&setBlood, "blood-type", 0, "Blood type: 0 not set, 1 A+, 2 A-, 3 B+, 4 B-, 5 AB+, 6 AB-, 7 O+, 8 O-")
}
