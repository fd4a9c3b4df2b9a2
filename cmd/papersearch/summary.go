package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-search-service/internal/app"
	"github.com/helixir/paper-search-service/internal/domain"
)

var (
	summaryLanguage    string
	summaryDifficulty  string
	summaryTranslation bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary <paper-id>",
	Short: "Print the summary of one paper",
	Long: `Summary returns the cached summary of a paper or generates one from its
abstract. With --translations it prints the graded abstract translations
instead.

Examples:
  papersearch summary s2:abc123
  papersearch summary pmid:31452104 --language en
  papersearch summary s2:abc123 --translations --difficulty children`,
	Args: cobra.ExactArgs(1),
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().StringVarP(&summaryLanguage, "language", "l", domain.DefaultLanguage, "summary language")
	summaryCmd.Flags().BoolVar(&summaryTranslation, "translations", false, "print graded abstract translations")
	summaryCmd.Flags().StringVar(&summaryDifficulty, "difficulty", "",
		"translation level (expert, layperson, children); empty prints all levels")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	paperID := args[0]
	return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
		if summaryTranslation {
			detail, err := a.Service.GetTranslations(ctx, paperID, summaryLanguage, summaryDifficulty)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), detail)
		}

		summary, err := a.Service.GetSummary(ctx, paperID, summaryLanguage)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summary)
	})
}
