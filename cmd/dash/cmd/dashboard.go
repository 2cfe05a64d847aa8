package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hongminglow/all-in-dash/internal/app"
	"github.com/hongminglow/all-in-dash/internal/dashboard"
	"github.com/hongminglow/all-in-dash/internal/models"
)

func newDashboardCmd(rt *runtime) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show your personalized dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, func(a *app.App) error {
				view, err := a.Dashboard.Load(cmd.Context(), refresh)
				if err != nil {
					return err
				}
				return renderDashboard(cmd.OutOrStdout(), view)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached copy and fetch again")
	return cmd
}

func newVoteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <news|price|insight|meme> <id> <up|down>",
		Short: "Vote on a dashboard item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := parseDirection(args[2])
			if err != nil {
				return err
			}
			return rt.run(cmd, func(a *app.App) error {
				// Seed the current votes so repeating a vote is a no-op.
				if _, err := a.Dashboard.Load(cmd.Context(), false); err != nil {
					return err
				}
				if err := a.Dashboard.Vote(cmd.Context(), args[0], args[1], dir); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Voted %s on %s.\n", args[2], models.VoteKey(args[0], args[1]))
				return err
			})
		},
	}
}

func parseDirection(s string) (dashboard.Direction, error) {
	switch strings.ToLower(s) {
	case "up", "+1", "1":
		return dashboard.Up, nil
	case "down", "-1":
		return dashboard.Down, nil
	default:
		return 0, fmt.Errorf("vote must be up or down, got %q", s)
	}
}

func renderDashboard(w io.Writer, view dashboard.View) error {
	p := view.Payload
	for _, section := range view.Sections() {
		switch section {
		case dashboard.SectionNews:
			fmt.Fprintln(w, "== Market News ==")
			for _, n := range p.News {
				fmt.Fprintf(w, "%s %s (%s) [%s]\n", marker(view.Votes, models.TargetNews, n.ID), n.Title, n.Source, n.ID)
			}
		case dashboard.SectionPrices:
			fmt.Fprintln(w, "== Prices ==")
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for _, c := range p.Prices {
				fmt.Fprintf(tw, "%s\t%s\t$%s\t%s%%\t[%s]\n", marker(view.Votes, models.TargetPrice, c.ID), c.Name, c.Price.StringFixed(2), c.Change24h.StringFixed(2), c.ID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		case dashboard.SectionInsight:
			if p.Insight != nil {
				fmt.Fprintln(w, "== AI Insight ==")
				fmt.Fprintf(w, "%s %s [%s]\n", marker(view.Votes, models.TargetInsight, p.Insight.ID), p.Insight.Text, p.Insight.ID)
			}
		case dashboard.SectionMeme:
			if p.Meme != nil {
				fmt.Fprintln(w, "== Meme ==")
				fmt.Fprintf(w, "%s %s %s [%s]\n", marker(view.Votes, models.TargetMeme, p.Meme.ID), p.Meme.Title, p.Meme.URL, p.Meme.ID)
			}
		}
	}
	source := "fresh"
	if view.Cached {
		source = "cached"
	}
	_, err := fmt.Fprintf(w, "(%s, fetched %s)\n", source, view.FetchedAt.Format("15:04:05"))
	return err
}

func marker(votes dashboard.VoteState, targetType, id string) string {
	switch votes.Get(targetType, id) {
	case dashboard.Up:
		return "[+]"
	case dashboard.Down:
		return "[-]"
	default:
		return "[ ]"
	}
}
