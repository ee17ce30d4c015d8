package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/audiomatch/internal/app"
	"github.com/okian/audiomatch/internal/domain/model"
)

type recommendOptions struct {
	budget         float64
	categories     []string
	experience     string
	signature      string
	headphones     string
	gear           []string
	driver         string
	toleranceBelow float64
	toleranceAbove float64
	json           bool
}

func (o *recommendOptions) request(cmd *cobra.Command) model.RecommendationRequest {
	req := model.RecommendationRequest{
		Budget:             o.budget,
		Experience:         o.experience,
		Signature:          o.signature,
		ExistingHeadphones: o.headphones,
		ExistingGear:       o.gear,
		DriverType:         o.driver,
	}
	for _, c := range o.categories {
		for _, part := range strings.Split(c, ",") {
			if part = strings.TrimSpace(part); part != "" {
				req.Categories = append(req.Categories, model.Category(part))
			}
		}
	}
	if cmd.Flags().Changed("tolerance-below") {
		v := o.toleranceBelow
		req.ToleranceBelow = &v
	}
	if cmd.Flags().Changed("tolerance-above") {
		v := o.toleranceAbove
		req.ToleranceAbove = &v
	}
	return req
}

func newRecommendCommand(ctx *commandContext) *cobra.Command {
	opts := &recommendOptions{}

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend components for a budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := opts.request(cmd)
			return ctx.withService(cmd.Context(), func(svc *service.Service) error {
				resp, err := svc.Recommend(cmd.Context(), req)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderResponse(resp))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.Float64VarP(&opts.budget, "budget", "b", 0, "Total budget in USD")
	f.StringSliceVarP(&opts.categories, "category", "t", nil, "Categories to shop for (repeatable or comma separated)")
	f.StringVar(&opts.experience, "experience", "", "beginner, intermediate or enthusiast")
	f.StringVar(&opts.signature, "signature", "", "Preferred sound signature")
	f.StringVar(&opts.headphones, "headphones", "", "Headphones you already own")
	f.StringSliceVar(&opts.gear, "gear", nil, "Other owned gear as category:description")
	f.StringVar(&opts.driver, "driver", "", "Preferred driver type")
	f.Float64Var(&opts.toleranceBelow, "tolerance-below", model.DefaultToleranceBelow, "Percent below the sub-budget to search")
	f.Float64Var(&opts.toleranceAbove, "tolerance-above", model.DefaultToleranceAbove, "Percent above the sub-budget to search")
	f.BoolVar(&opts.json, "json", false, "Print the raw response as JSON")
	_ = cmd.MarkFlagRequired("budget")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func renderResponse(resp *model.Response) string {
	var b strings.Builder

	allocRows := make([][]string, 0, len(resp.Results))
	for _, res := range resp.Results {
		a := resp.Allocation.Categories[res.Category]
		allocRows = append(allocRows, []string{
			string(res.Category), money(a.Amount),
			money(a.Window.Low) + " - " + money(a.Window.High),
			strconv.Itoa(a.Count), string(res.Status),
		})
	}
	b.WriteString(renderTable(
		[]string{"Category", "Budget", "Window", "Available", "Status"},
		allocRows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	b.WriteString("\n")

	rows := make([][]string, 0)
	for _, res := range resp.Results {
		for i, c := range res.Candidates {
			rows = append(rows, []string{
				string(res.Category), strconv.Itoa(i + 1), c.Component.Brand, c.Component.Name,
				money(c.AveragePrice), number(c.Score, 1),
			})
		}
		if res.Error != "" {
			rows = append(rows, []string{string(res.Category), "-", "", res.Error, "", ""})
		}
	}
	b.WriteString(renderTable(
		[]string{"Category", "#", "Brand", "Model", "Price", "Score"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight},
	))

	if resp.AmplificationAdvisable {
		b.WriteString("\nAmplification advisable: " + resp.AmplificationRationale + "\n")
		if len(resp.SuggestedAmplifiers) > 0 {
			amps := make([][]string, 0, len(resp.SuggestedAmplifiers))
			for _, c := range resp.SuggestedAmplifiers {
				amps = append(amps, []string{c.Component.Brand, c.Component.Name, money(c.AveragePrice), number(c.Score, 1)})
			}
			b.WriteString(renderTable([]string{"Brand", "Model", "Price", "Score"}, amps,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}))
		}
	}
	if resp.Cached {
		b.WriteString("\n(cached)")
	}
	return b.String()
}
