// Clipctl is the command-line client for monitoring and controlling a
// running clipwatchd instance. It connects over HTTP and WebSocket to query
// status and stream live events from the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/clipwatch/clipwatch/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "Clipwatch daemon URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,log)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --limit are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "config-list":
		err = ctl.ConfigList(*host, *jsonOut)

	case "clips":
		opts := ctl.ClipsOptions{JSON: *jsonOut}
		clipFlags := pflag.NewFlagSet("clips", pflag.ContinueOnError)
		clipFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of clips shown")
		clipFlags.Int64Var(&opts.Delete, "delete", 0, "Delete a clip by id")
		_ = clipFlags.Parse(subArgs)
		err = ctl.Clips(*host, opts)

	case "stats":
		err = ctl.Stats(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (info, error, warn)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	case "system-info":
		err = ctl.SystemInfo(*host, *jsonOut)

	// ── Control commands ──────────────────────────────────────────
	case "start":
		err = ctl.Start(*host, *jsonOut)

	case "stop":
		err = ctl.Stop(*host, *jsonOut)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	case "reset-motion":
		err = ctl.ResetMotion(*host, *jsonOut)

	case "reload":
		opts := ctl.ReloadOptions{JSON: *jsonOut}
		reloadFlags := pflag.NewFlagSet("reload", pflag.ContinueOnError)
		reloadFlags.StringVar(&opts.Profile, "profile", "", "Switch to a named config profile")
		_ = reloadFlags.Parse(subArgs)
		err = ctl.Reload(*host, opts)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  clipctl — Clipwatch control CLI

  USAGE
    clipctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, uptime, and current activity
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    config-list     List available config profiles
    clips           List recorded clips
    stats           Show aggregate clip statistics
    logs            Show recent daemon log messages
    system-info     Show runtime and host information

  COMMANDS (control)
    start           Force a recording session to open now
    stop            Close the active recording session
    pause           Pause motion watching (closes any active session)
    resume          Resume motion watching
    reset-motion    Clear the motion baseline and settle timer
    reload          Reload configuration from disk

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    clips:
        --limit N           Limit number of clips shown
        --delete ID         Delete a clip by id

    logs:
        --level LEVEL       Filter by log level (info, error, warn)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

    reload:
        --profile NAME      Switch to a named config profile

  EXAMPLES
    clipctl status
    clipctl --json status
    clipctl --host http://192.168.8.1:8080 watch
    clipctl clips --limit 10
    clipctl clips --delete 4
    clipctl logs --level error --limit 20
    clipctl logs --tail
    clipctl start
    clipctl stop
    clipctl pause
    clipctl resume
    clipctl reset-motion
    clipctl config-list
    clipctl reload --profile garage
    clipctl watch --filter state,log,session_saved

`)
}
