package cmd

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/admin"
	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/request"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show project and review statistics side by side",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := requireLogin(a); err != nil {
			return err
		}
		ctx := cmd.Context()
		projects := request.New(ctx, a.client)
		reviews := request.New(ctx, a.client)
		defer projects.Close()
		defer reviews.Close()

		var (
			ps client.Envelope[admin.ProjectStats]
			rs client.Envelope[admin.ReviewStats]
			wg sync.WaitGroup
		)
		wg.Go(func() { projects.Get(ctx, "/projects/stats", &ps) })
		wg.Go(func() { reviews.Get(ctx, "/reviews/stats", &rs) })
		wg.Wait()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Projects")
		if msg := projects.Err(); msg != "" {
			fmt.Fprintf(out, "  unavailable: %s\n", msg)
		} else {
			s := projects.Data().(*client.Envelope[admin.ProjectStats]).Data
			fmt.Fprintf(out, "  total %d, featured %d\n", s.Total, s.Featured)
			for _, cat := range slices.Sorted(maps.Keys(s.ByCategory)) {
				fmt.Fprintf(out, "  %-16s %d\n", cat, s.ByCategory[cat])
			}
		}
		fmt.Fprintln(out, "Reviews")
		if msg := reviews.Err(); msg != "" {
			fmt.Fprintf(out, "  unavailable: %s\n", msg)
		} else {
			s := reviews.Data().(*client.Envelope[admin.ReviewStats]).Data
			fmt.Fprintf(out, "  total %d, approved %d, pending %d, average rating %.1f\n",
				s.Total, s.Approved, s.Pending, s.AverageRating)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
