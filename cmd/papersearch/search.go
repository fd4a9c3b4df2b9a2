package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-search-service/internal/app"
	"github.com/helixir/paper-search-service/internal/domain"
)

var (
	searchLanguage string
	searchPage     int
	searchPerPage  int
	searchYearFrom int
	searchYearTo   int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run one search and print the response as JSON",
	Long: `Search expands the query, fans it out to the enabled paper sources, ranks
and summarizes the results and prints the composed response.

Examples:
  papersearch search "vitamin d and depression"
  papersearch search "睡眠の質" --language ja --per-page 10
  papersearch search "statins" --year-from 2015 --year-to 2024`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchLanguage, "language", "l", domain.DefaultLanguage, "response language")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page (1-based)")
	searchCmd.Flags().IntVar(&searchPerPage, "per-page", domain.DefaultPerPage, "results per page")
	searchCmd.Flags().IntVar(&searchYearFrom, "year-from", 0, "earliest publication year")
	searchCmd.Flags().IntVar(&searchYearTo, "year-to", 0, "latest publication year")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	req := domain.SearchRequest{
		Query:    strings.Join(args, " "),
		Language: searchLanguage,
		Page:     searchPage,
		PerPage:  searchPerPage,
	}
	if cmd.Flags().Changed("year-from") {
		req.Filters.YearFrom = domain.IntPtr(searchYearFrom)
	}
	if cmd.Flags().Changed("year-to") {
		req.Filters.YearTo = domain.IntPtr(searchYearTo)
	}

	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		resp, err := a.Service.Search(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	})
}
