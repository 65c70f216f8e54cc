package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/uicheck/internal/engine"
	"github.com/v0xg/uicheck/internal/imagediff"
	"github.com/v0xg/uicheck/internal/visual"
	"github.com/v0xg/uicheck/internal/wait"
)

func visualCmd() *cobra.Command {
	var settle time.Duration
	cmd := &cobra.Command{
		Use:   "visual <url> <testName>...",
		Short: "Compare screenshots of a page against stored baselines",
		Long: `visual opens url once per test name, lets the page settle and compares a
screenshot with <root>/baseline/<testName>-baseline.png. A missing baseline is
created from the capture. Regressions are logged with the diff image path and
never change the exit status.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, names := args[0], args[1:]

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := signalContext()
			defer cancel()

			store := visual.NewStore(s.cfg.ReportRoot)
			pipeline := visual.NewPipeline(store,
				visual.WithSettle(s.cfg.SettleTimeout),
				visual.WithFlicker(s.cfg.Flicker),
				visual.WithLogger(s.logger),
			)

			var runOpts []visual.RunOption
			if cmd.Flags().Changed("settle") {
				runOpts = append(runOpts, visual.Settle(settle))
			}

			fmt.Printf("→ Checking %d visual test(s) with %d worker(s)\n", len(names), s.cfg.Workers)

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(s.cfg.Workers)
			for _, name := range names {
				name := name // per-iteration copy (go directive < 1.22)
				g.Go(func() error {
					page, err := s.browser.NewPage(gctx, url)
					if err != nil {
						return fmt.Errorf("%s: %w", name, err)
					}
					defer page.Close()
					pipeline.Run(gctx, page, name, runOpts...)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			fmt.Printf("✓ Artifacts in %s\n", store.Root())
			return nil
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", 0, "Settle time before each capture (default from config)")
	return cmd
}

func waitCmd() *cobra.Command {
	var (
		state   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "wait <url> <selector>",
		Short: "Wait for an element to reach a state",
		Long: `wait loads url and waits until selector reaches --state. Selectors are
#<test id> or an XPath starting with // or (. Timing out is reported, not
treated as a failure.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := engine.ParseWaitState(state)
			if err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := signalContext()
			defer cancel()

			page, err := s.browser.NewPage(ctx, args[0])
			if err != nil {
				return err
			}
			defer page.Close()

			res, err := s.waiter.Await(ctx, page, wait.Request{Selector: args[1], State: ws, Timeout: timeout})
			if err != nil {
				return err
			}

			if res.Outcome == wait.TimedOut {
				fmt.Printf("⚠ %s not %s after %s\n", args[1], ws, formatDuration(res.Elapsed))
				return nil
			}
			fmt.Printf("✓ %s %s after %s\n", args[1], ws, formatDuration(res.Elapsed))
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "visible", "Target state: present, visible, invisible")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Wait timeout (default from config)")
	return cmd
}

func textCmd() *cobra.Command {
	var property string
	cmd := &cobra.Command{
		Use:   "text <url> <selector>",
		Short: "Print an element's text or a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := signalContext()
			defer cancel()

			page, err := s.browser.NewPage(ctx, args[0])
			if err != nil {
				return err
			}
			defer page.Close()

			a := s.accessor(page)
			var out string
			if property != "" {
				out, err = a.Property(ctx, args[1], property)
			} else {
				out, err = a.Text(ctx, args[1])
			}
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&property, "property", "", "Print this DOM property instead of the text")
	return cmd
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <a.png> <b.png> <diff.png>",
		Short: "Compare two PNG files and write a diff image",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := imagediff.Compare(args[0], args[1], args[2], imagediff.DefaultThreshold)
			if err != nil {
				return err
			}
			if res.Identical {
				fmt.Printf("✓ Images match (%d pixels)\n", res.Total)
				return nil
			}
			fmt.Printf("✗ %d of %d pixels differ (%.2f%%) within %v\n", res.DiffPixels, res.Total, res.Ratio()*100, res.Bounds)
			fmt.Printf("  diff: %s\n", res.DiffPath)
			return fmt.Errorf("images differ")
		},
	}
}

func baselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect stored baselines",
	}

	store := func(cmd *cobra.Command, name string) (*visual.Store, error) {
		if err := visual.ValidateName(name); err != nil {
			return nil, err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		return visual.NewStore(cfg.ReportRoot), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path <testName>",
			Short: "Print the baseline path for a test",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := store(cmd, args[0])
				if err != nil {
					return err
				}
				fmt.Println(s.BaselinePath(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "exists <testName>",
			Short: "Exit non-zero when no baseline exists for a test",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := store(cmd, args[0])
				if err != nil {
					return err
				}
				if !s.Exists(args[0]) {
					return fmt.Errorf("no baseline for %s", args[0])
				}
				fmt.Println(s.BaselinePath(args[0]))
				return nil
			},
		},
	)
	return cmd
}
