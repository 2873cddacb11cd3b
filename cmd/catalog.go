package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/sells-group/commonplace/internal/catalog"
	"github.com/sells-group/commonplace/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the candidate meeting areas",
	Long:  "Prints the area catalog, optionally filtered by category or ordered by distance from a point.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("catalog"); err != nil {
			return err
		}

		category, _ := cmd.Flags().GetString("category")
		near, _ := cmd.Flags().GetString("near")
		limit, _ := cmd.Flags().GetInt("limit")

		cat, err := loadCatalog(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		areas, err := selectAreas(cat, category, near, limit)
		if err != nil {
			return err
		}
		if len(areas) == 0 {
			fmt.Fprintln(os.Stderr, "No areas found.")
			return nil
		}
		formatAreas(os.Stdout, areas)
		return nil
	},
}

func init() {
	catalogCmd.Flags().String("category", "", "only list areas of this category")
	catalogCmd.Flags().String("near", "", "order by distance from \"lng,lat\"")
	catalogCmd.Flags().Int("limit", 0, "maximum areas to list (0 for all)")
	rootCmd.AddCommand(catalogCmd)
}

func selectAreas(cat *catalog.Catalog, category, near string, limit int) ([]model.CandidateArea, error) {
	areas := cat.All()
	if near != "" {
		o := parseOrigin(near)
		if o.Coordinate == nil {
			return nil, eris.Errorf("catalog: --near needs \"lng,lat\", got %q", near)
		}
		areas = cat.Nearest(*o.Coordinate, cat.Len())
	}
	if category != "" {
		want := model.Category(strings.ToLower(category))
		if !want.Valid() {
			return nil, eris.Errorf("catalog: unknown category %q", category)
		}
		areas = lo.Filter(areas, func(a model.CandidateArea, _ int) bool { return a.Category == want })
	}
	if limit > 0 && len(areas) > limit {
		areas = areas[:limit]
	}
	return areas, nil
}

func formatAreas(w io.Writer, areas []model.CandidateArea) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tZONES\tLNG\tLAT")
	for _, a := range areas {
		zones := lo.Map(a.Zones, func(z int, _ int) string { return fmt.Sprint(z) })
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\n", a.Name, a.Category, strings.Join(zones, ","), a.Coordinate.Lng, a.Coordinate.Lat)
	}
	_ = tw.Flush()
}
