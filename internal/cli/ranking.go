package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wedding-quiz-service/internal/config"
	"wedding-quiz-service/internal/domain"
)

func newRankingCmd(opts *rootOptions) *cobra.Command {
	var (
		archived bool
		round    int
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "ranking <session-id>",
		Short: "Print a session's final ranking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			b, err := openBackends(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.close()

			var entries []domain.RankingEntry
			if archived {
				if b.archive == nil {
					return fmt.Errorf("%w: --archived needs postgres.url", config.ErrInvalidConfig)
				}
				entries, err = b.archive.Ranking(ctx, args[0], round)
			} else {
				entries, err = b.service(cfg).FinalRanking(ctx, args[0], limit)
			}
			if err != nil {
				return err
			}
			return printRanking(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "read the ranking archived in Postgres")
	cmd.Flags().IntVar(&round, "round", 0, "archived round to print (0 = latest)")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (0 = all)")
	return cmd
}

func printRanking(w io.Writer, entries []domain.RankingEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no correct answers yet")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNICKNAME\tCORRECT\tAVG SECONDS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.2f\n", e.Rank, e.Nickname, e.CorrectCount, e.AverageResponseTime)
	}
	return tw.Flush()
}
