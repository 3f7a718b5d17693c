package main

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/diskmemo"
	"github.com/unkn0wn-root/diskmemo/gc"
	"github.com/unkn0wn-root/diskmemo/internal/fsstat"
	"github.com/unkn0wn-root/diskmemo/internal/util"
	"github.com/unkn0wn-root/diskmemo/lock"
)

func (a *app) gcCmd() *cobra.Command {
	var (
		lastAccess  time.Duration
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove entries that have not been read recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("last-access") {
				lastAccess = a.cfg.GCLastAccess.DurationValue()
			}
			log := a.logger()
			c := gc.New(gc.Options{
				Root:        a.root(),
				LastAccess:  lastAccess,
				Concurrency: concurrency,
				OnError: func(path string, err error) {
					log.Warn("gc failed on entry", diskmemo.Fields{"path": path, "err": err})
				},
			})
			r, err := c.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("gc sweep", diskmemo.Fields{
				"root":    a.root(),
				"scanned": r.Scanned,
				"removed": r.Removed,
				"failed":  r.Failed,
				"freed":   r.BytesFreed,
			})
			fmt.Fprintf(a.out, "scanned %d, removed %d (%s), failed %d in %s\n",
				r.Scanned, r.Removed, humanize.Bytes(uint64(r.BytesFreed)), r.Failed, r.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().DurationVar(&lastAccess, "last-access", diskmemo.DefaultGCLastAccess, "remove entries not read for this long (default from config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", gc.DefaultConcurrency, "parallel deletions")
	return cmd
}

func (a *app) pathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <key>",
		Short: "Print the entry and lock paths for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fp := diskmemo.DefaultIdentity(args[0])
			fmt.Fprintln(a.out, util.CachePath(fp, a.root()))
			fmt.Fprintln(a.out, util.LockPath(fp, a.lockRoot()))
			return nil
		},
	}
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <key>",
		Short: "Show the entry and lock state for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fp := diskmemo.DefaultIdentity(args[0])
			return a.inspect(util.CachePath(fp, a.root()), util.LockPath(fp, a.lockRoot()))
		},
	}
}

func (a *app) inspect(entry, marker string) error {
	now := time.Now()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "entry\t%s\n", entry)
	info, err := fsstat.Stat(entry)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(tw, "  state\tabsent\n")
	case err != nil:
		return err
	default:
		maxAge := a.cfg.MaxAge.DurationValue()
		fmt.Fprintf(tw, "  size\t%s\n", humanize.Bytes(uint64(info.Size())))
		fmt.Fprintf(tw, "  created\t%s (%s)\n", info.Changed.Format(time.RFC3339), humanize.Time(info.Changed))
		fmt.Fprintf(tw, "  accessed\t%s (%s)\n", info.Accessed.Format(time.RFC3339), humanize.Time(info.Accessed))
		switch {
		case maxAge <= 0:
			fmt.Fprintf(tw, "  expires\tnever\n")
		case diskmemo.Expired(maxAge, info.Changed, now):
			fmt.Fprintf(tw, "  expires\texpired\n")
		default:
			fmt.Fprintf(tw, "  expires\t%s\n", humanize.Time(info.Changed.Add(maxAge)))
		}
	}

	coord := lock.New(lock.Options{Stale: a.cfg.LockStale()})
	defer coord.Close()

	fmt.Fprintf(tw, "lock\t%s\n", marker)
	st, err := coord.State(marker)
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "  state\t%s\n", st)
	if st != lock.Free {
		m, err := lock.Marker(marker)
		if err != nil {
			fmt.Fprintf(tw, "  holder\tunreadable: %v\n", err)
		} else {
			fmt.Fprintf(tw, "  holder\tpid %d on %s\n", m.PID, m.Host)
			fmt.Fprintf(tw, "  token\t%s\n", m.Token)
			fmt.Fprintf(tw, "  acquired\t%s\n", humanize.Time(m.Acquired))
		}
	}
	return tw.Flush()
}

func (a *app) unlockCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "unlock <key>",
		Short: "Remove a stale lock marker for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fp := diskmemo.DefaultIdentity(args[0])
			marker := util.LockPath(fp, a.lockRoot())

			coord := lock.New(lock.Options{Stale: a.cfg.LockStale()})
			defer coord.Close()

			st, err := coord.State(marker)
			if err != nil {
				return err
			}
			switch {
			case st == lock.Free:
				fmt.Fprintf(a.out, "%s: not locked\n", marker)
				return nil
			case st == lock.Held && !force:
				return fmt.Errorf("%s is held by a live owner (use --force)", marker)
			}
			if err := coord.Release(marker); err != nil {
				return err
			}
			a.logger().Warn("removed lock marker", diskmemo.Fields{"lock": marker, "state": st.String()})
			fmt.Fprintf(a.out, "%s: removed (%s)\n", marker, st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "remove the marker even if its owner is still refreshing it")
	return cmd
}
