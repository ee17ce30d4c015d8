package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/audiomatch/internal/app"
	"github.com/okian/audiomatch/internal/domain/model"
	"github.com/okian/audiomatch/internal/domain/power"
)

func newPowerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Headphone drive requirements and amplifier matching",
	}
	cmd.AddCommand(newPowerRequirementCommand())
	cmd.AddCommand(newPowerMatchCommand(ctx))
	return cmd
}

func newPowerRequirementCommand() *cobra.Command {
	var (
		impedance   float64
		sensitivity float64
		spl         float64
		needsAmp    bool
		brand       string
		name        string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "requirement",
		Short: "Compute the power a headphone needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if impedance <= 0 {
				return fmt.Errorf("--impedance must be positive")
			}
			var sens *float64
			if cmd.Flags().Changed("sensitivity") {
				sens = &sensitivity
			}
			var req model.PowerRequirement
			if cmd.Flags().Changed("spl") {
				s := power.EstimateSensitivity(impedance)
				if sens != nil {
					s = *sens
				}
				req = power.ComputeRequirement(impedance, s, spl)
				req.Estimated = sens == nil
			} else {
				req = power.RequirementFor(impedance, sens)
			}
			assessment := power.NewAssessor().Assess(impedance, needsAmp, name, brand)

			if asJSON {
				return writeJSON(cmd, map[string]any{"requirement": req, "assessment": assessment})
			}
			rows := [][]string{
				{"Power", number(req.PowerMW, 2) + " mW"},
				{"Voltage", number(req.VoltageV, 3) + " V"},
				{"Current", number(req.CurrentMA, 2) + " mA"},
				{"Difficulty", string(req.Difficulty)},
				{"Assessment", string(assessment.Difficulty)},
				{"Phone", yesNo(req.PhoneCompatible)},
				{"Laptop", yesNo(req.LaptopCompatible)},
				{"Portable amp", yesNo(req.PortableAmpCompatible)},
				{"Estimated", yesNo(req.Estimated)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			fmt.Fprintln(cmd.OutOrStdout(), req.Rationale)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&impedance, "impedance", 0, "Impedance in ohms")
	f.Float64Var(&sensitivity, "sensitivity", 0, "Sensitivity in dB/mW")
	f.Float64Var(&spl, "spl", power.DefaultTargetSPL, "Target loudness in dB SPL")
	f.BoolVar(&needsAmp, "needs-amp", false, "Manufacturer recommends an amplifier")
	f.StringVar(&brand, "brand", "", "Brand, used for the known-difficult table")
	f.StringVar(&name, "name", "", "Model name, used for the known-difficult table")
	f.BoolVar(&asJSON, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("impedance")
	return cmd
}

func newPowerMatchCommand(ctx *commandContext) *cobra.Command {
	var (
		headphoneIDs []string
		ampIDs       []string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Rank catalog amplifiers against owned headphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(svc *service.Service) error {
				loads := make([]model.Component, 0, len(headphoneIDs))
				for _, id := range headphoneIDs {
					c, err := svc.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					loads = append(loads, c)
				}

				var amps []model.Component
				if len(ampIDs) == 0 {
					list, err := svc.Components(cmd.Context(), model.CategoryAmp, model.CategoryDACAmp)
					if err != nil {
						return err
					}
					amps = list
				}
				for _, id := range ampIDs {
					c, err := svc.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					amps = append(amps, c)
				}

				matches := power.MatchAmplifiers(loads, amps)
				if matches == nil {
					return fmt.Errorf("none of %s has a known impedance", strings.Join(headphoneIDs, ", "))
				}
				if limit > 0 && len(matches) > limit {
					matches = matches[:limit]
				}
				rows := make([][]string, 0, len(matches))
				for _, m := range matches {
					rows = append(rows, []string{
						m.Amplifier.DisplayName(), number(m.DeliveredMW, 0), number(m.RequiredMW, 1),
						number(m.Ratio, 2), number(m.Overall, 2), yesNo(m.Estimated),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Amplifier", "Delivered mW", "Required mW", "Ratio", "Overall", "Estimated"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&headphoneIDs, "headphone", nil, "Catalog IDs of owned headphones")
	cmd.Flags().StringSliceVar(&ampIDs, "amp", nil, "Catalog IDs of amplifiers to compare (default: all)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Show at most this many amplifiers")
	_ = cmd.MarkFlagRequired("headphone")
	return cmd
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
