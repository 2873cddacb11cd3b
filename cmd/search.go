package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/commonplace/internal/geo"
	"github.com/sells-group/commonplace/internal/meetpoint"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find meeting points between two locations",
	Long:  "Runs one meeting-point search. Locations are free text (geocoded) or \"lng,lat\".",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		at, _ := cmd.Flags().GetString("at")
		asJSON, _ := cmd.Flags().GetBool("json")

		req, err := buildRequest(from, to, at)
		if err != nil {
			return err
		}

		env, err := initSearch(ctx, cfg, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Engine.Search(ctx, req)
		if err != nil {
			return eris.Wrap(err, "search")
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		formatResults(os.Stdout, resp)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("from", "", "first location (text or \"lng,lat\")")
	searchCmd.Flags().String("to", "", "second location (text or \"lng,lat\")")
	searchCmd.Flags().String("at", "", "meeting time, RFC 3339")
	searchCmd.Flags().Bool("json", false, "print the full response as JSON")
	_ = searchCmd.MarkFlagRequired("from")
	_ = searchCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(searchCmd)
}

func buildRequest(from, to, at string) (meetpoint.Request, error) {
	req := meetpoint.Request{Location1: parseOrigin(from), Location2: parseOrigin(to)}
	if req.Location1.Empty() || req.Location2.Empty() {
		return req, eris.New("search: --from and --to are required")
	}
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return req, eris.Wrapf(err, "search: parse --at %q", at)
		}
		req.MeetingTime = &t
	}
	return req, nil
}

// parseOrigin reads "lng,lat" as a coordinate and anything else as text.
func parseOrigin(s string) meetpoint.Origin {
	s = strings.TrimSpace(s)
	lngStr, latStr, ok := strings.Cut(s, ",")
	if ok {
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if errLng == nil && errLat == nil {
			return meetpoint.PointOrigin(geo.NewCoordinate(lng, lat))
		}
	}
	return meetpoint.TextOrigin(s)
}

func formatResults(w io.Writer, resp *meetpoint.Response) {
	md := resp.Metadata
	fmt.Fprintf(w, "From: %s\nTo:   %s\n\n", md.Location1Name, md.Location2Name)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tAREA\tSCORE\tTRIP 1\tTRIP 2\tROUTE\tCONFIDENCE")
	for _, r := range resp.Results {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%d min\t%d min\t%s\t%s\n",
			r.Rank, r.Name, r.Score,
			r.Journey1.DurationMinutes, r.Journey2.DurationMinutes,
			r.RouteType, r.Confidence,
		)
	}
	_ = tw.Flush()

	states := make([]string, 0, len(md.States))
	for _, s := range md.States {
		states = append(states, string(s))
	}
	fmt.Fprintf(w, "\nPath: %s\n", strings.Join(states, " > "))
	if md.Relaxed {
		fmt.Fprintln(w, "Note: results are closer together than usual.")
	}
}
