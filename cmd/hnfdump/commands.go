package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scigolib/hnf"
)

func runInspect(w io.Writer, path string, asJSON bool, cfg config) error {
	inv, err := hnf.Inspect(path, hnf.WithLogger(cfg.logger()))
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(inv)
	}

	fmt.Fprintf(w, "format: %s\n", inv.FormatSpec)
	if inv.FormatURL != "" {
		fmt.Fprintf(w, "url:    %s\n", inv.FormatURL)
	}
	fmt.Fprintf(w, "neurons: %d\n\n", len(inv.Neurons))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tREPRESENTATIONS\tANNOTATIONS")
	for _, id := range inv.IDs() {
		n := inv.Neurons[id]
		var kinds []string
		for _, k := range hnf.Kinds {
			if n.Has(k) {
				kinds = append(kinds, k.String())
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, dash(n.Name), dash(strings.Join(kinds, ",")), dash(strings.Join(n.Annotations, ",")))
	}
	return tw.Flush()
}

func runLs(w io.Writer, path string, cfg config) error {
	r, err := hnf.OpenReader(path, hnf.WithLogger(cfg.logger()))
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	ids, err := r.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

func runRead(cmd *cobra.Command, path string, cfg config) error {
	flags := cmd.Flags()
	repr, _ := flags.GetString("repr")
	subset, _ := flags.GetStringSlice("subset")
	onError, _ := flags.GetString("on-error")
	raw, _ := flags.GetBool("raw")
	loose, _ := flags.GetBool("loose")
	parallel, _ := flags.GetBool("parallel")

	policy, err := hnf.ParseReadPolicy(repr)
	if err != nil {
		return err
	}
	mode, err := hnf.ParseErrorMode(onError)
	if err != nil {
		return err
	}

	opts := []hnf.Option{
		hnf.WithRepresentations(policy),
		hnf.WithOnError(mode),
		hnf.WithPreferRaw(raw),
		hnf.WithStrict(!loose),
		hnf.WithWorkers(cfg.workers),
		hnf.WithLogger(cfg.logger()),
	}
	for _, id := range subset {
		opts = append(opts, hnf.WithSubset(id))
	}
	if parallel {
		opts = append(opts, hnf.WithParallel(hnf.ParallelOn))
	}

	res, err := hnf.Read(cmd.Context(), path, opts...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tNAME\tSIZE\tUNITS")
	for _, n := range res.Neurons {
		info := n.NeuronInfo()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", info.ID, n.Kind(), dash(info.Name), describe(n), dash(info.Units.String()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for id, err := range res.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
	}
	return nil
}

func runRepack(cmd *cobra.Command, src, dst string, cfg config) error {
	noSerialized, _ := cmd.Flags().GetBool("no-serialized")
	noRaw, _ := cmd.Flags().GetBool("no-raw")
	logger := cfg.logger()

	res, err := hnf.Read(cmd.Context(), src,
		hnf.WithRepresentations(hnf.MustParseReadPolicy("skeleton,mesh,dotprops")),
		hnf.WithStrict(false),
		hnf.WithAnnotations(hnf.AllAnnotations()),
		hnf.WithWorkers(cfg.workers),
		hnf.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	err = hnf.Write(cmd.Context(), dst, res.Neurons,
		hnf.WithMode(hnf.ModeOverwrite),
		hnf.WithSerialized(!noSerialized),
		hnf.WithRaw(!noRaw),
		hnf.WithCompression(cfg.compression),
		hnf.WithAnnotations(hnf.AllAnnotations()),
		hnf.WithOverwriteNeurons(true),
		hnf.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "repacked %d blocks into %s\n", len(res.Neurons), dst)
	return nil
}

func describe(n hnf.Neuron) string {
	switch x := n.(type) {
	case *hnf.Skeleton:
		return fmt.Sprintf("%d nodes, %d roots", x.Nodes.Len(), len(x.Roots()))
	case *hnf.Mesh:
		return fmt.Sprintf("%d vertices, %d faces", len(x.Vertices), len(x.Faces))
	case *hnf.Dotprops:
		return fmt.Sprintf("%d points, k=%d", len(x.Points), x.K)
	}
	return "-"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
