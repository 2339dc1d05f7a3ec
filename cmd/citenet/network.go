package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matsen/citenet/internal/config"
	"github.com/matsen/citenet/internal/doi"
	"github.com/matsen/citenet/internal/export"
	"github.com/matsen/citenet/internal/network"
	"github.com/matsen/citenet/internal/viz"
)

// Output formats for the network command.
const (
	FormatJSON      = "json"
	FormatCytoscape = "cytoscape"
	FormatHTML      = "html"
	FormatBibTeX    = "bibtex"
)

var (
	networkTopN        int
	networkPoolCap     int
	networkFloor       float64
	networkWorkers     int
	networkWDirect     float64
	networkWCoCitation float64
	networkWCoupling   float64
	networkNoExpand    bool
	networkNoInter     bool
	networkFormat      string
	networkLayout      string
	networkOutput      string
	networkTimeout     time.Duration
	networkFromPDF     string
	networkBibFile     string
	networkMetricsOut  string
)

var networkCmd = &cobra.Command{
	Use:   "network [doi]",
	Short: "Build the related-paper network around a seed DOI",
	Long: `Build the related-paper network around a seed DOI.

Candidates are the seed's references and citers plus the papers reached by
one coupling hop and one co-citation hop. They are ranked by a weighted sum
of direct citation, co-citation, and coupling counts, and the top N are
returned with scores normalized so the best candidate scores 99.

Examples:
  citenet network 10.1038/nature12373
  citenet network https://doi.org/10.1038/nature12373 --top-n 40 --human
  citenet network --from-pdf paper.pdf --format html -o network.html
  citenet network 10.1038/nature12373 --format bibtex --bib refs.bib`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNetwork,
}

func init() {
	f := networkCmd.Flags()
	f.IntVarP(&networkTopN, "top-n", "n", network.DefaultTopN, "Number of related papers to keep")
	f.IntVar(&networkPoolCap, "pool-cap", network.DefaultPoolCap, "Maximum candidates scored")
	f.Float64Var(&networkFloor, "floor", network.DefaultScoreFloor, "Lowest normalized score a candidate can receive")
	f.IntVar(&networkWorkers, "workers", network.DefaultWorkers, "Concurrent lookups")
	f.Float64Var(&networkWDirect, "w-direct", 1, "Weight of direct citation")
	f.Float64Var(&networkWCoCitation, "w-cocitation", 2, "Weight of co-citation")
	f.Float64Var(&networkWCoupling, "w-coupling", 2, "Weight of bibliographic coupling")
	f.BoolVar(&networkNoExpand, "no-cocitation-hop", false, "Skip the co-citation expansion hop")
	f.BoolVar(&networkNoInter, "no-inter-edges", false, "Omit citation edges between candidates")
	f.StringVarP(&networkFormat, "format", "f", FormatJSON, "Output format: json, cytoscape, html, or bibtex")
	f.StringVar(&networkLayout, "layout", "force", "HTML layout: "+strings.Join(viz.ValidLayouts, ", "))
	f.StringVarP(&networkOutput, "output", "o", "", "Write to file instead of stdout")
	f.DurationVar(&networkTimeout, "timeout", 0, "Abort the build after this long (0 means no limit)")
	f.StringVar(&networkFromPDF, "from-pdf", "", "Take the seed DOI from a PDF")
	f.StringVar(&networkBibFile, "bib", "", "With --format bibtex, skip entries already in this .bib file and append the rest")
	f.StringVar(&networkMetricsOut, "metrics-out", "", "Write cache metrics in Prometheus text format to this file")
	rootCmd.AddCommand(networkCmd)
}

func runNetwork(cmd *cobra.Command, args []string) error {
	seed, err := resolveSeed(args)
	if err != nil {
		return err
	}
	applyNetworkFlags(cmd, &cfg.Network)
	if err := cfg.Network.Validate(); err != nil {
		return fmt.Errorf("invalid network options: %w", err)
	}
	switch networkFormat {
	case FormatJSON, FormatCytoscape, FormatHTML, FormatBibTeX:
	default:
		return fmt.Errorf("unknown format %q: must be json, cytoscape, html, or bibtex", networkFormat)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if networkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, networkTimeout)
		defer cancel()
	}

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	reg := prometheus.NewRegistry()
	acc, closeCache, err := withCache(src, cfg.Cache, reg)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	defer closeCache()

	opts := append(cfg.Network.BuilderOptions(), network.WithLogger(logger))
	g, err := network.NewBuilder(acc, opts...).Build(ctx, seed, cfg.Network.TopN)
	if err != nil {
		return err
	}

	if networkMetricsOut != "" {
		if err := prometheus.WriteToTextfile(networkMetricsOut, reg); err != nil {
			logger.Warn("writing metrics", "path", networkMetricsOut, "error", err)
		}
	}

	return writeNetwork(g)
}

// resolveSeed takes the seed from the argument or from --from-pdf.
func resolveSeed(args []string) (string, error) {
	var raw string
	switch {
	case networkFromPDF != "" && len(args) > 0:
		return "", errors.New("give either a DOI or --from-pdf, not both")
	case networkFromPDF != "":
		found, err := doi.FromPDF(networkFromPDF)
		if err != nil {
			return "", fmt.Errorf("reading seed from PDF: %w", err)
		}
		raw = found
	case len(args) == 1:
		raw = args[0]
	default:
		return "", errors.New("a seed DOI or --from-pdf is required")
	}

	seed := doi.Normalize(raw)
	if !doi.IsValid(seed) {
		return "", fmt.Errorf("invalid DOI: %q", raw)
	}
	return seed, nil
}

// applyNetworkFlags overrides config values with explicitly set flags.
func applyNetworkFlags(cmd *cobra.Command, n *config.NetworkConfig) {
	f := cmd.Flags()
	if f.Changed("top-n") {
		n.TopN = networkTopN
	}
	if f.Changed("pool-cap") {
		n.PoolCap = networkPoolCap
	}
	if f.Changed("floor") {
		n.ScoreFloor = networkFloor
	}
	if f.Changed("workers") {
		n.Workers = networkWorkers
	}
	if f.Changed("w-direct") {
		n.Weights.Direct = networkWDirect
	}
	if f.Changed("w-cocitation") {
		n.Weights.CoCitation = networkWCoCitation
	}
	if f.Changed("w-coupling") {
		n.Weights.Coupling = networkWCoupling
	}
	if networkNoExpand {
		n.CoCitationExpansion = false
	}
	if networkNoInter {
		n.InterCandidateEdges = false
	}
}

// writeNetwork renders g in the selected format to stdout or --output.
func writeNetwork(g *network.CitationGraph) error {
	if networkFormat == FormatJSON && humanOutput && networkOutput == "" {
		data, err := export.Marshal(export.ToInterchange(g))
		if err != nil {
			return err
		}
		printNetworkHuman(os.Stdout, g, export.Fingerprint(data))
		return nil
	}

	if networkFormat == FormatBibTeX && networkBibFile != "" {
		return appendBibTeX(g)
	}

	data, err := renderNetwork(g)
	if err != nil {
		return err
	}

	if networkOutput == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(networkOutput, data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if humanOutput {
		fmt.Printf("Wrote %s (%d papers, %d edges)\n", networkOutput, len(g.Nodes), len(g.Edges))
		return nil
	}
	return outputJSON(StatusResponse{
		Status:      "written",
		Path:        networkOutput,
		Fingerprint: export.Fingerprint(data),
	})
}

func renderNetwork(g *network.CitationGraph) ([]byte, error) {
	switch networkFormat {
	case FormatCytoscape:
		s, err := viz.FromGraph(g).ToCytoscapeJSON()
		if err != nil {
			return nil, err
		}
		return []byte(s + "\n"), nil
	case FormatHTML:
		opts := viz.DefaultOptions()
		opts.Layout = networkLayout
		s, err := viz.GenerateHTML(viz.FromGraph(g), opts)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	case FormatBibTeX:
		return []byte(export.ToBibTeXList(g, nil)), nil
	default:
		return export.Marshal(export.ToInterchange(g))
	}
}

// appendBibTeX appends entries missing from --bib to that file.
func appendBibTeX(g *network.CitationGraph) error {
	idx, err := export.ParseBibTeXFile(networkBibFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", networkBibFile, err)
	}
	entries := export.BibTeXEntries(g, idx)
	added := len(entries)
	if added > 0 {
		if err := export.AppendToBibFile(networkBibFile, strings.Join(entries, "\n")); err != nil {
			return fmt.Errorf("appending to %s: %w", networkBibFile, err)
		}
	}

	if humanOutput {
		fmt.Printf("Added %d entries to %s (%d already present)\n", added, networkBibFile, len(g.Nodes)-added)
		return nil
	}
	return outputJSON(map[string]any{
		"status":  "appended",
		"path":    networkBibFile,
		"added":   added,
		"skipped": len(g.Nodes) - added,
	})
}

// printNetworkHuman prints the ranking as a numbered list.
func printNetworkHuman(w io.Writer, g *network.CitationGraph, fingerprint string) {
	seed := g.Nodes[g.Seed]
	fmt.Fprintf(w, "Seed: %s\n", g.Seed)
	if seed != nil && seed.Title != "" {
		fmt.Fprintf(w, "      %s\n", truncateString(seed.Title, RankTitleMaxLen))
	}
	fmt.Fprintln(w)

	if g.IsEmpty() {
		fmt.Fprintln(w, "No related papers found")
	}
	for i, c := range g.Ranked {
		n := g.Nodes[c.DOI]
		fmt.Fprintf(w, "%2d. [%5.1f] %s  (direct %.0f, co-cited %d, coupled %d)\n",
			i+1, n.SimilarityScore, n.DOI, c.Scores.Direct, c.Scores.CoCitation, c.Scores.Coupling)
		if n.Title != "" {
			fmt.Fprintf(w, "    %s\n", truncateString(n.Title, RankTitleMaxLen))
		}
		if len(n.Authors) > 0 || n.Year != nil {
			year := "n.d."
			if n.Year != nil {
				year = fmt.Sprint(*n.Year)
			}
			fmt.Fprintf(w, "    %s (%s)\n", formatAuthorsShort(n.Authors, 3), year)
		}
	}

	m := g.Meta
	fmt.Fprintf(w, "\n%d papers, %d edges; pool %d", len(g.Nodes), len(g.Edges), m.PoolSize)
	if m.Truncated {
		fmt.Fprintf(w, " (capped at %d)", m.PoolCap)
	}
	fmt.Fprintln(w)
	if m.PartialMetadata {
		fmt.Fprintf(w, "Metadata missing for %d papers\n", len(m.MissingMetadata))
	}
	if m.LookupFailures > 0 {
		fmt.Fprintf(w, "%d lookups failed; scores may be understated\n", m.LookupFailures)
	}
	fmt.Fprintf(w, "Fingerprint: %s\n", fingerprint)
}
