package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/citenet/internal/citation"
	"github.com/matsen/citenet/internal/doi"
)

var lookupLimit int

var citingCmd = &cobra.Command{
	Use:   "citing <doi>",
	Short: "List works that cite a DOI",
	Long: `List works that cite a DOI (forward citation tracking).

Examples:
  citenet citing 10.1038/nature12373
  citenet citing 10.1038/nature12373 --limit 20 --human`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(cmd, args[0], directionCiting)
	},
}

var citedCmd = &cobra.Command{
	Use:   "cited <doi>",
	Short: "List works a DOI cites",
	Long: `List the references of a DOI.

Examples:
  citenet cited 10.1038/nature12373
  citenet cited 10.1038/nature12373 --human`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(cmd, args[0], directionCited)
	},
}

func init() {
	for _, c := range []*cobra.Command{citingCmd, citedCmd} {
		c.Flags().IntVarP(&lookupLimit, "limit", "n", 100, "Maximum results (0 for all)")
		rootCmd.AddCommand(c)
	}
}

const (
	directionCiting = "citing"
	directionCited  = "cited"
)

// LookupResult is the JSON output for the citing and cited commands.
type LookupResult struct {
	DOI       string   `json:"doi"`
	Direction string   `json:"direction"`
	DOIs      []string `json:"dois"`
	Count     int      `json:"count"`
	Total     *int     `json:"total,omitempty"` // citing only
}

func runLookup(cmd *cobra.Command, raw, direction string) error {
	id := doi.Normalize(raw)
	if !doi.IsValid(id) {
		return fmt.Errorf("invalid DOI: %q", raw)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	result, err := lookup(ctx, src, id, direction, lookupLimit)
	if err != nil {
		if citation.IsNotFound(err) {
			return withCode(ExitSeedNotFound, err)
		}
		return err
	}

	if humanOutput {
		printLookupHuman(result)
		return nil
	}
	return outputJSON(result)
}

func lookup(ctx context.Context, src source, id, direction string, limit int) (*LookupResult, error) {
	result := &LookupResult{DOI: id, Direction: direction}

	var err error
	if direction == directionCiting {
		result.DOIs, err = src.Citing(ctx, id, limit)
		if err != nil {
			return nil, err
		}
		total, err := src.CitationCount(ctx, id)
		if err != nil {
			logger.Warn("counting citations", "doi", id, "error", err)
		} else {
			result.Total = &total
		}
	} else {
		result.DOIs, err = src.Cited(ctx, id, limit)
		if err != nil {
			return nil, err
		}
	}

	if result.DOIs == nil {
		result.DOIs = []string{}
	}
	result.Count = len(result.DOIs)
	return result, nil
}

func printLookupHuman(r *LookupResult) {
	switch {
	case r.Direction == directionCiting && r.Total != nil:
		fmt.Printf("%d of %d works citing %s\n\n", r.Count, *r.Total, r.DOI)
	case r.Direction == directionCiting:
		fmt.Printf("%d works citing %s\n\n", r.Count, r.DOI)
	default:
		fmt.Printf("%d works cited by %s\n\n", r.Count, r.DOI)
	}
	for i, d := range r.DOIs {
		fmt.Printf("%3d. %s\n", i+1, d)
	}
}
