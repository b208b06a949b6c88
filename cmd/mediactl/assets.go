package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/media-search/internal/client"
	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/timecode"
	"github.com/kirillkom/media-search/internal/watcher"
)

func (c *cli) uploadCmd() *cobra.Command {
	var (
		category    string
		subcategory string
		metadata    string
		wait        bool
		policy      watcher.Policy
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video or document and start its extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.UploadRequest{Path: args[0], Category: category, Subcategory: subcategory}
			if metadata != "" {
				if !json.Valid([]byte(metadata)) {
					return fmt.Errorf("--metadata is not valid JSON")
				}
				req.Metadata = json.RawMessage(metadata)
			}
			api := c.client()
			res, err := api.Upload(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := c.printJSON(res); err != nil {
				return err
			}
			if !wait || res.Kind != domain.KindVideo {
				return nil
			}
			segments, err := c.awaitCaptions(cmd, api, res.ID, policy)
			if err != nil {
				return err
			}
			return c.printCaptions(segments)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&category, "category", "", "taxonomy category")
	flags.StringVar(&subcategory, "subcategory", "", "taxonomy subcategory")
	flags.StringVar(&metadata, "metadata", "", "JSON object stored with the asset")
	flags.BoolVar(&wait, "wait", false, "wait for video captions before exiting")
	watchFlags(cmd, &policy)
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live assets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := c.client().List(cmd.Context(), only)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tCATEGORY\tNAME\tVIEWS\tUPLOADED")
			for _, a := range items {
				category := a.Category
				if a.Subcategory != "" {
					category += "/" + a.Subcategory
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					a.ID, a.Kind, category, a.DisplayName, a.ViewCount, a.UploadedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "all, video or document")
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	var policy watcher.Policy
	cmd := &cobra.Command{
		Use:   "watch <assetId>",
		Short: "Poll until an asset's captions are available",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := c.awaitCaptions(cmd, c.client(), args[0], policy)
			if err != nil {
				return err
			}
			return c.printCaptions(segments)
		},
	}
	watchFlags(cmd, &policy)
	return cmd
}

func (c *cli) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <assetId>",
		Short: "Run extraction synchronously and print the stored rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.client().Extract(cmd.Context(), args[0])
			var failure *domain.WorkerFailure
			if errors.As(err, &failure) {
				fmt.Fprintf(cmd.ErrOrStderr(), "extractor exited with %d\n%s", failure.ExitCode, failure.Stderr)
				return err
			}
			if err != nil {
				return err
			}
			return c.printJSON(res)
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <assetId>...",
		Short: "Soft-delete assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := c.client().BulkDelete(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deleted %d of %d\n", count, len(args))
			return nil
		},
	}
}

func watchFlags(cmd *cobra.Command, policy *watcher.Policy) {
	flags := cmd.Flags()
	flags.DurationVar(&policy.Interval, "interval", watcher.DefaultInterval, "delay between caption polls")
	flags.IntVar(&policy.MaxAttempts, "max-attempts", 450, "give up after this many polls, 0 polls forever")
	flags.Float64Var(&policy.BackoffMultiplier, "backoff", 1, "interval multiplier applied after each empty poll")
	flags.DurationVar(&policy.MaxInterval, "max-interval", 0, "upper bound for the poll interval")
}

func (c *cli) awaitCaptions(cmd *cobra.Command, fetcher watcher.Fetcher, assetID string, policy watcher.Policy) ([]domain.CaptionSegment, error) {
	var segments []domain.CaptionSegment
	w := watcher.New(fetcher, policy, c.logger)
	w.Start(cmd.Context(), assetID, func(found []domain.CaptionSegment) {
		segments = found
	})
	if err := w.Wait(cmd.Context()); err != nil {
		w.Stop()
		return nil, err
	}
	switch w.State() {
	case watcher.StateDone:
		return segments, nil
	case watcher.StateStalled:
		return nil, fmt.Errorf("no captions for %s after %d polls", assetID, w.Attempts())
	default:
		return nil, fmt.Errorf("watch for %s stopped", assetID)
	}
}

func (c *cli) printCaptions(segments []domain.CaptionSegment) error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for i, s := range segments {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, timecode.Format(s.StartSec), s.Text)
	}
	return tw.Flush()
}
