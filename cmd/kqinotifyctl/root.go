package kqinotifyctl

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kqinotify/kqinotify/config"
	"github.com/kqinotify/kqinotify/internal/kflags"
	"github.com/kqinotify/kqinotify/notify"
)

var bannerLines = []string{
	"     _              _             _   _  __       ",
	"    | | ___ __ _  _(_)_ __   ___ | |_(_)/ _|_   _ ",
	"    | |/ / _\\/ _\\/| | '_ \\ / _ \\| __| | |_| | | |",
	"    |   < (_| | | | | | | | (_) | |_| |  _| |_| |",
	"    |_|\\_\\__, |_|_|_|_| |_|\\___/ \\__|_|_|  \\__, |",
	"         |___/                             |___/ ",
	helpText,
}

var helpText = `
kqinotifyctl watches directories for file system events using
kqinotify, an inotify-compatible event stream built on top of BSD
kqueue/EVFILT_VNODE. It prints matching events to stdout.
`

var banner = strings.Join(bannerLines, "\n")

var rootCmd = &cobra.Command{
	Use:   "kqinotifyctl",
	Short: "kqinotifyctl watches directories for file system events",
	Long:  banner,
	RunE:  root,
}

var (
	watchDirs        []string
	eventNames       string
	skipFSTypes      []string
	followSymlinks   bool
	maskAddSemantics bool
	rescanDebounce   time.Duration
	httpAddr         string
)

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&watchDirs, "dirs", "d", []string{"/tmp"}, "watch these directories")
	rootCmd.PersistentFlags().StringVarP(&eventNames, "events", "e", "", "comma-separated event names to watch (default: all)")
	rootCmd.PersistentFlags().StringArrayVar(&skipFSTypes, "skip-fs-type", nil, "open no per-entry watches inside a watched directory on this filesystem type")
	rootCmd.PersistentFlags().BoolVar(&followSymlinks, "follow-symlinks", false, "follow a symlink given directly as a watch target")
	rootCmd.PersistentFlags().BoolVar(&maskAddSemantics, "mask-add", true, "OR an add-flagged mask update into a watch's existing mask instead of replacing it")
	rootCmd.PersistentFlags().DurationVar(&rescanDebounce, "rescan-debounce", 20*time.Millisecond, "minimum interval between directory rescans")
	rootCmd.PersistentFlags().StringVar(&httpAddr, "http-addr", "", "serve read-only watch/metrics introspection on this address (empty disables it)")
}

func root(cmd *cobra.Command, args []string) error {
	mask, err := kflags.ParseMask(eventNames)
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.SkipFSTypes = skipFSTypes
	cfg.FollowSymlinks = followSymlinks
	cfg.MaskAddSemantics = maskAddSemantics
	cfg.RescanDebounce = rescanDebounce
	cfg.HTTPAddr = httpAddr

	fmt.Printf("Watching: %+v (%d)\n", watchDirs, len(watchDirs))
	fmt.Printf("Config: %s\n", cfg)

	inst, err := notify.Init(cfg)
	if err != nil {
		return fmt.Errorf("kqinotifyctl: %w", err)
	}
	defer inst.Close()

	for _, dir := range watchDirs {
		wd, err := inst.AddWatch(dir, mask)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kqinotifyctl: watch %s: %v\n", dir, err)
			continue
		}
		fmt.Printf("watching %s as wd=%d\n", dir, wd)
	}

	for ev := range inst.Events() {
		fmt.Printf("wd=%d mask=0x%x cookie=%d name=%q\n", ev.WD, ev.Mask, ev.Cookie, ev.Name)
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
