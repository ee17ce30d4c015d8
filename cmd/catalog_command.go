package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/audiomatch/internal/adapters/repository"
	service "github.com/okian/audiomatch/internal/app"
	"github.com/okian/audiomatch/internal/domain/model"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and load the component catalog",
	}
	cmd.AddCommand(newCatalogImportCommand(ctx))
	cmd.AddCommand(newCatalogListCommand(ctx))
	return cmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load a JSON component list into the SQLite catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Catalog.SQLitePath
			}

			list, err := repository.LoadFile(args[0])
			if err != nil {
				return err
			}
			store, err := repository.OpenSQLite(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Upsert(cmd.Context(), list...)
			if err != nil {
				return err
			}
			counts, err := store.Counts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d components into %s\n", n, store.Path())
			fmt.Fprintln(cmd.OutOrStdout(), renderCounts(counts))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite catalog path (default: catalog.sqlite_path)")
	return cmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var (
		categories []string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog components, cheapest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := make([]model.Category, 0, len(categories))
			for _, c := range categories {
				cat, err := model.ParseCategory(c)
				if err != nil {
					return err
				}
				cats = append(cats, cat)
			}
			return ctx.withService(cmd.Context(), func(svc *service.Service) error {
				list, err := svc.Components(cmd.Context(), cats...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				rows := make([][]string, 0, len(list))
				for i := range list {
					c := &list[i]
					price := "-"
					if avg, ok := c.AveragePrice(); ok {
						price = money(avg)
					}
					rows = append(rows, []string{
						c.ID, string(c.Category), c.Brand, c.Name, price,
						impedance(c.ImpedanceOhms), optional(c.SensitivityDBmW, 0),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Category", "Brand", "Model", "Price", "Ohms", "dB/mW"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&categories, "category", "t", nil, "Only list these categories")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func renderCounts(counts map[model.Category]int) string {
	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{c, strconv.Itoa(counts[model.Category(c)])})
	}
	return renderTable([]string{"Category", "Components"}, rows, []columnAlignment{alignLeft, alignRight})
}

func impedance(ohms float64) string {
	if ohms <= 0 {
		return "-"
	}
	return number(ohms, 0)
}
