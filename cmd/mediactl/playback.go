package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/media-search/internal/core/domain"
	"github.com/kirillkom/media-search/internal/playback"
	"github.com/kirillkom/media-search/internal/playback/mpv"
	"github.com/kirillkom/media-search/internal/timecode"
)

func (c *cli) searchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search captions and document text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hits, err := c.client().Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return c.printJSON(hits)
			}
			if len(hits) == 0 {
				fmt.Fprintln(c.out, "no results")
				return nil
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMATCH\tAT\tNAME\tSNIPPET")
			for _, h := range hits {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.MediaAssetID, h.MatchedFrom, hitTime(h), h.Name, h.Snippet)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON results")
	return cmd
}

func (c *cli) jumpCmd() *cobra.Command {
	var socket string
	var seekTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "jump <time>",
		Short: "Seek a running mpv player to a timestamp such as 83.5 or 01:23",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sec, ok := timecode.Normalize(args[0])
			if !ok {
				return fmt.Errorf("invalid time %q", args[0])
			}
			player, err := mpv.Dial(cmd.Context(), socket)
			if err != nil {
				return err
			}
			defer player.Close()

			synchronizer := playback.New(player, playback.WithSeekTimeout(seekTimeout), playback.WithLogger(c.logger))
			synchronizer.JumpTo(cmd.Context(), sec)
			if err := synchronizer.Wait(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "at %s\n", timecode.Format(playback.Target(sec)))
			return nil
		},
	}
	playerFlags(cmd, &socket, &seekTimeout)
	return cmd
}

func (c *cli) navigateCmd() *cobra.Command {
	var socket string
	var seekTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "navigate <assetId>",
		Short: "Pick caption lines from stdin and jump the player to them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := c.client().Captions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(segments) == 0 {
				return fmt.Errorf("asset %s has no captions yet", args[0])
			}
			if err := c.printCaptions(segments); err != nil {
				return err
			}

			player, err := mpv.Dial(cmd.Context(), socket)
			if err != nil {
				return err
			}
			defer player.Close()
			synchronizer := playback.New(player, playback.WithSeekTimeout(seekTimeout), playback.WithLogger(c.logger))
			return c.navigate(cmd.Context(), synchronizer, segments)
		},
	}
	playerFlags(cmd, &socket, &seekTimeout)
	return cmd
}

// navigate reads caption numbers, one per line, until EOF or "q".
func (c *cli) navigate(ctx context.Context, syncer *playback.Synchronizer, segments []domain.CaptionSegment) error {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" {
			break
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(segments) {
			fmt.Fprintf(c.out, "pick a number between 1 and %d\n", len(segments))
			continue
		}
		if !syncer.JumpTo(ctx, segments[n-1].StartSec) {
			if syncer.State() != playback.StateIdle {
				fmt.Fprintln(c.out, "seek in progress")
			} else {
				fmt.Fprintln(c.out, "already there")
			}
		}
	}
	if err := syncer.Wait(ctx); err != nil {
		return err
	}
	return scanner.Err()
}

func playerFlags(cmd *cobra.Command, socket *string, seekTimeout *time.Duration) {
	flags := cmd.Flags()
	flags.StringVar(socket, "socket", envOr("MPV_SOCKET", "/tmp/mpvsocket"), "mpv --input-ipc-server socket path")
	flags.DurationVar(seekTimeout, "seek-timeout", playback.DefaultSeekTimeout, "how long to wait for the player to finish a seek")
}

func hitTime(h domain.SearchHit) string {
	if h.SourceTimestamp == nil {
		return "-"
	}
	return timecode.Format(*h.SourceTimestamp)
}
