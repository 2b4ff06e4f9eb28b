package main

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"glimpse/internal/database"
	"glimpse/internal/export"
	"glimpse/internal/library"
	"glimpse/internal/media"
	"glimpse/internal/mediatypes"
	"glimpse/internal/scheduler"
	"glimpse/internal/startup"
	"glimpse/internal/workers"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <folder>",
		Short: "List the supported images of a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := media.ScanFolder(args[0])
			if err != nil {
				return err
			}
			if ctx.flags.jsonOutput {
				return writeJSON(cmd, images)
			}

			table := make([][]string, 0, len(images))
			for i, img := range images {
				kind := "image"
				if mediatypes.IsRaw(img.Filename) {
					kind = "raw"
				}
				table = append(table, []string{
					strconv.Itoa(i + 1), img.Filename, kind, img.MimeType, humanize.IBytes(uint64(img.Size)), img.ModifiedAt,
				})
			}
			printTable(cmd, []string{"#", "File", "Type", "MIME", "Size", "Modified"}, table,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
			fmt.Fprintf(cmd.OutOrStdout(), "%d images\n", len(images))
			return nil
		},
	}
}

// openSummary is the JSON output of the open command.
type openSummary struct {
	SessionID         string             `json:"sessionId"`
	Images            int                `json:"images"`
	LastSelectedIndex int                `json:"lastSelectedIndex"`
	Succeeded         int                `json:"succeeded"`
	Failed            int                `json:"failed"`
	Failures          []scheduler.Result `json:"failures,omitempty"`
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var useVips bool

	cmd := &cobra.Command{
		Use:     "open <folder>",
		Aliases: []string{"thumbs"},
		Short:   "Open a folder and generate its thumbnails and RAW previews",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd.Context(), libraryOptions{vips: useVips}, func(lib *library.Library) error {
				var hooks library.OpenHooks
				if !ctx.flags.jsonOutput {
					hooks.OnProgress = newProgressPrinter(cmd.ErrOrStderr()).update
				}

				res, err := lib.Open(cmd.Context(), args[0], hooks)
				if err != nil {
					return err
				}
				results, err := res.Batch.Wait(cmd.Context())
				if err != nil {
					return err
				}

				summary := openSummary{
					SessionID:         res.SessionID,
					Images:            len(res.Images),
					LastSelectedIndex: res.LastSelectedIndex,
				}
				for _, r := range results {
					if r.Success {
						summary.Succeeded++
					} else {
						summary.Failed++
						summary.Failures = append(summary.Failures, r)
					}
				}
				if ctx.flags.jsonOutput {
					return writeJSON(cmd, summary)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session %s: %d images, resuming at #%d\n", res.SessionID, len(res.Images), res.LastSelectedIndex+1)
				fmt.Fprintf(out, "Thumbnails: %d ready, %d failed (%d workers)\n", summary.Succeeded, summary.Failed, res.Threads)
				if summary.Failed > 0 {
					rows := make([][]string, 0, len(summary.Failures))
					for _, f := range summary.Failures {
						rows = append(rows, []string{f.Filename, f.ErrorKind, f.Error})
					}
					printTable(cmd, []string{"File", "Kind", "Error"}, rows, nil)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&useVips, "vips", true, "Use libvips as RAW fallback decoder")
	return cmd
}

func parseLabel(s string) database.Label {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "clear":
		return database.LabelNone
	}
	return database.Label(strings.TrimSpace(s))
}

type fileLabel struct {
	Filename string         `json:"filename"`
	Label    database.Label `json:"label"`
}

func newLabelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "label <folder> <file> [adopted|rejected|none]",
		Short: "Show, set or clear the label of a file",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := library.SessionFor(args[0])
			if err != nil {
				return err
			}
			filename := args[1]
			return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
				if len(args) == 2 {
					label, err := lib.Label(cmd.Context(), sid, filename)
					if err != nil {
						return err
					}
					if ctx.flags.jsonOutput {
						return writeJSON(cmd, fileLabel{Filename: filename, Label: label})
					}
					if label == database.LabelNone {
						label = "none"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", filename, label)
					return nil
				}

				label := parseLabel(args[2])
				if err := lib.SetLabel(cmd.Context(), sid, filename, label); err != nil {
					return err
				}
				if label == database.LabelNone {
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared label of %s\n", filename)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Labeled %s %s\n", filename, label)
				}
				return nil
			})
		},
	}
}

func newLabelsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels <folder>",
		Short: "List the labels of a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := library.SessionFor(args[0])
			if err != nil {
				return err
			}
			return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
				labels, err := lib.Labels(cmd.Context(), sid)
				if err != nil {
					return err
				}
				if ctx.flags.jsonOutput {
					if labels == nil {
						labels = []database.FileLabel{}
					}
					return writeJSON(cmd, labels)
				}

				rows := make([][]string, 0, len(labels))
				for _, l := range labels {
					rows = append(rows, []string{l.Filename, string(l.Label), humanize.Time(l.UpdatedAt)})
				}
				printTable(cmd, []string{"File", "Label", "Updated"}, rows, nil)
				return nil
			})
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear-all",
		Short: "Delete every label of every folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirm(cmd, yes, "Delete ALL labels of every folder?"); err != nil {
				return err
			}
			return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
				n, err := lib.ClearAllLabels(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d labels\n", n)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(clearCmd)
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "export <source> <destination>",
		Short: "Copy or move every image not labeled rejected",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
				result, err := lib.Export(cmd.Context(), args[0], args[1], mode)
				if err != nil {
					return err
				}
				if ctx.flags.jsonOutput {
					return writeJSON(cmd, result)
				}

				verb := "Copied"
				if m, _ := export.ParseMode(mode); m == export.ModeMove {
					verb = "Moved"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d images (%d rejected skipped, %d failed)\n",
					verb, result.Copied, result.Total, result.Skipped, result.Failed)
				if len(result.Failures) > 0 {
					rows := make([][]string, 0, len(result.Failures))
					for _, f := range result.Failures {
						rows = append(rows, []string{f.Filename, f.Error})
					}
					printTable(cmd, []string{"File", "Error"}, rows, nil)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(export.ModeCopy), "copy or move")
	return cmd
}

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List previously opened folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
				sessions, err := lib.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.flags.jsonOutput {
					return writeJSON(cmd, sessions)
				}

				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{
						s.ID, s.FolderPath, strconv.Itoa(s.TotalFiles),
						strconv.Itoa(s.LastSelectedIndex + 1), humanize.Time(s.LastOpened),
					})
				}
				printTable(cmd, []string{"Session", "Folder", "Files", "Position", "Opened"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft})
				return nil
			})
		},
	}
}

func newExifCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "exif <file>",
		Short: "Show the shooting information of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := media.ReadExif(args[0])
			if err != nil {
				return err
			}
			if ctx.flags.jsonOutput {
				return writeJSON(cmd, info)
			}

			fields := [][2]string{
				{"Camera", strings.TrimSpace(info.CameraMake + " " + info.CameraModel)},
				{"Lens", info.LensModel},
				{"Focal length", info.FocalLength},
				{"Aperture", info.Aperture},
				{"Shutter", info.ShutterSpeed},
				{"ISO", info.ISO},
				{"Exposure comp.", info.ExposureCompensation},
				{"Taken", info.DateTaken},
			}
			if info.Width > 0 && info.Height > 0 {
				fields = append(fields, [2]string{"Dimensions", fmt.Sprintf("%dx%d", info.Width, info.Height)})
			}

			rows := make([][]string, 0, len(fields))
			for _, f := range fields {
				if f[1] != "" {
					rows = append(rows, []string{f[0], f[1]})
				}
			}
			printTable(cmd, []string{"Field", "Value"}, rows, nil)
			return nil
		},
	}
}

func newThreadsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "threads [count|auto]",
		Short: "Show or set the thumbnail worker count",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
				if len(args) == 1 {
					var n *int
					if args[0] != "auto" {
						v, err := strconv.Atoi(args[0])
						if err != nil {
							return fmt.Errorf("%w: thread count %q is not a number", library.ErrInvalidArgument, args[0])
						}
						n = &v
					}
					if err := lib.SetThreadCount(n); err != nil {
						return err
					}
				}

				info := lib.SystemInfo()
				if ctx.flags.jsonOutput {
					return writeJSON(cmd, info)
				}
				override := "auto"
				if info.Override != nil {
					override = strconv.Itoa(*info.Override)
				}
				if info.EnvOverride > 0 {
					override = fmt.Sprintf("%d (%s)", info.EnvOverride, workers.EnvOverride)
				}
				printTable(cmd, []string{"CPUs", "Current", "Recommended", "Setting", "libvips"}, [][]string{{
					strconv.Itoa(info.CPUCount), strconv.Itoa(info.CurrentThreads),
					strconv.Itoa(info.RecommendedThreads), override, yesNo(info.VipsAvailable),
				}}, nil)
				return nil
			})
		},
	}
}

func newStorageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Show cache size and label counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
				info, err := lib.StorageInfo(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.flags.jsonOutput {
					return writeJSON(cmd, info)
				}
				cleared := "never"
				if info.LastCacheClear != nil {
					cleared = humanize.Time(*info.LastCacheClear)
				}
				printTable(cmd, []string{"Cache", "Sessions", "Labels", "Last cleared"}, [][]string{{
					info.CacheSizeDisplay, strconv.FormatInt(info.SessionCount, 10),
					strconv.FormatInt(info.LabelCount, 10), cleared,
				}}, nil)
				return nil
			})
		},
	}
}

func newCacheCommand(ctx *commandContext) *cobra.Command {
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached thumbnails and previews",
	}
	clearCmd := &cobra.Command{
		Use:   "clear [folder]",
		Short: "Delete the cached assets of one folder, or of all folders with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("%w: give a folder or --all", library.ErrInvalidArgument)
			}

			if all {
				if err := confirm(cmd, yes, "Delete every cached thumbnail and preview?"); err != nil {
					return err
				}
				return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
					freed, err := lib.ClearAllCache(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Freed %s\n", humanize.IBytes(uint64(freed)))
					return nil
				})
			}

			sid, err := library.SessionFor(args[0])
			if err != nil {
				return err
			}
			return ctx.withLibrary(cmd.Context(), libraryOptions{}, func(lib *library.Library) error {
				if err := lib.ClearCache(cmd.Context(), sid); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared cache of session %s\n", sid)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "Clear the cache of every folder")
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(clearCmd)
	return cmd
}

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := startup.GetBuildInfo()
			if ctx.flags.jsonOutput {
				return writeJSON(cmd, info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "glimpsectl %s (%s) %s %s/%s\n", info.Version, info.Commit, info.GoVersion, info.OS, info.Arch)
			return nil
		},
	}
}

var errNotConfirmed = errors.New("aborted")

// confirm asks a yes/no question on interactive stdin. Without a terminal
// the caller must pass --yes.
func confirm(cmd *cobra.Command, yes bool, question string) error {
	if yes {
		return nil
	}
	if !isInteractive(cmd.InOrStdin()) {
		return fmt.Errorf("%w: %s (pass --yes to run without a terminal)", errNotConfirmed, question)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errNotConfirmed
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
