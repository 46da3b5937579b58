package cli

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bugmaschine/vidsniff/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	CommandScan     = "scan"
	CommandWatch    = "watch"
	CommandServe    = "serve"
	CommandDownload = "download"
)

// Args is what the command line selected. Settings that also exist in the
// config file are not stored here; their flags are bound to viper instead.
type Args struct {
	Command    string
	Url        string
	Videos     string
	Static     bool
	ConfigFile string
	Trace      bool

	// Flags is the flag set of the command that ran.
	Flags *pflag.FlagSet
}

// flagKeys maps flag names onto configuration keys.
var flagKeys = map[string]string{
	"debounce":       config.KeyDebounce,
	"background-cap": config.KeyBackgroundCap,
	"scanners":       config.KeyScanners,
	"browser":        config.KeyHeadless,
	"browser-path":   config.KeyBrowserPath,
	"timeout":        config.KeyTimeout,
	"user-agent":     config.KeyUserAgent,
	"concurrent":     config.KeyConcurrent,
	"rate":           config.KeyRateLimit,
	"retries":        config.KeyRetries,
	"output-folder":  config.KeyOutputDir,
	"skip-existing":  config.KeySkipExisting,
	"ffmpeg":         config.KeyFfmpegPath,
	"addr":           config.KeyAddr,
	"debug":          config.KeyDebug,
	"log":            config.KeyLogFile,
}

// BindFlags makes every flag that was set on the command line override its
// configuration key.
func BindFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if name == "browser" {
			// --browser shows the window, the key says the opposite
			if f.Changed {
				v.Set(key, f.Value.String() != "true")
			}
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

type Range struct {
	Begin int64
	End   int64
}

// Selection is a set of video ids kept as merged, sorted ranges. A nil
// Selection selects every video.
type Selection []Range

// ParseVideoSelection parses "1-3,5". "all" or an empty input return a nil
// Selection.
func ParseVideoSelection(input string) (Selection, error) {
	ranges, err := parseRanges(input)
	if err != nil {
		return nil, err
	}
	return Selection(ranges), nil
}

func (s Selection) All() bool { return s == nil }

func (s Selection) Contains(id int64) bool {
	if s == nil {
		return true
	}
	i := sort.Search(len(s), func(i int) bool { return s[i].End >= id })
	return i < len(s) && s[i].Begin <= id
}

func (s Selection) String() string {
	if s == nil {
		return "all"
	}
	parts := make([]string, len(s))
	for i, r := range s {
		if r.Begin == r.End {
			parts[i] = strconv.FormatInt(r.Begin, 10)
		} else {
			parts[i] = fmt.Sprintf("%d-%d", r.Begin, r.End)
		}
	}
	return strings.Join(parts, ",")
}

func parseRanges(input string) ([]Range, error) {
	if input == "" || strings.ToLower(input) == "all" {
		return nil, nil
	}

	noSpace := strings.ReplaceAll(input, " ", "")
	parts := strings.Split(noSpace, ",")
	var ranges []Range

	for _, part := range parts {
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return nil, fmt.Errorf("invalid range format: %s", part)
			}
			begin, err := strconv.ParseInt(rangeParts[0], 10, 64)
			if err != nil {
				return nil, err
			}
			end, err := strconv.ParseInt(rangeParts[1], 10, 64)
			if err != nil {
				return nil, err
			}
			if begin > end {
				return nil, fmt.Errorf("range start cannot be bigger than range end: %s", part)
			}
			ranges = append(ranges, Range{Begin: begin, End: end})
		} else {
			num, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, Range{Begin: num, End: num})
		}
	}

	return mergeRanges(ranges), nil
}

func mergeRanges(ranges []Range) []Range {
	if len(ranges) <= 1 {
		return ranges
	}

	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Begin < ranges[j].Begin
	})

	merged := []Range{ranges[0]}
	for i := 1; i < len(ranges); i++ {
		last := &merged[len(merged)-1]
		current := ranges[i]

		if current.Begin <= last.End+1 {
			if current.End > last.End {
				last.End = current.End
			}
		} else {
			merged = append(merged, current)
		}
	}
	return merged
}

var rateLimitRe = regexp.MustCompile(`^([\d.]+)\s*([a-zA-Z]*)$`)

// ParseRateLimit parses a rate like "500k" or "2Mi" into bytes per second.
// "inf" means no limit and returns 0.
func ParseRateLimit(input string) (float64, error) {
	if strings.ToLower(input) == "inf" {
		return 0, nil
	}

	matches := rateLimitRe.FindStringSubmatch(input)
	if matches == nil {
		return 0, fmt.Errorf("invalid rate limit format: %s", input)
	}

	val, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, err
	}

	unit := strings.ToLower(matches[2])
	multiplier := 1.0
	switch unit {
	case "", "b":
	case "k", "kb":
		multiplier = 1000
	case "ki", "kib":
		multiplier = 1024
	case "m", "mb":
		multiplier = 1000 * 1000
	case "mi", "mib":
		multiplier = 1024 * 1024
	case "g", "gb":
		multiplier = 1000 * 1000 * 1000
	case "gi", "gib":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown rate limit unit: %s", matches[2])
	}

	return val * multiplier, nil
}

func NewRootCommand(args *Args) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vidsniff",
		Short:         "Find the videos a web page plays",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&args.ConfigFile, "config", "c", "", "Path to a config file (default: vidsniff.{toml,yaml,json} in the working or data directory)")
	pf.BoolP("debug", "d", false, "Enable debug mode")
	pf.BoolVar(&args.Trace, "trace", false, "Log every scanner pass, implies --debug")
	pf.StringP("log", "l", "", "Path to log file. If not set, logs will only be printed to console. WARNING: This will append to the log file.")

	cmd.AddCommand(
		newScanCommand(args),
		newWatchCommand(args),
		newServeCommand(args),
		newDownloadCommand(args),
	)
	return cmd
}

// selected returns a Run func that records which command ran.
func selected(args *Args, name string) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, cmdArgs []string) {
		args.Command = name
		args.Url = cmdArgs[0]
		args.Flags = cmd.Flags()
	}
}

func addDiscoveryFlags(f *pflag.FlagSet) {
	f.Duration("debounce", 500*time.Millisecond, "Quiet period after a relevant page mutation before re-scanning")
	f.Int("background-cap", 5000, "Maximum number of elements the background scan inspects, 0 for all")
	f.StringSlice("scanners", nil, "Scanners to run (native, embed, background, hls, dash), all when empty")
}

func addBrowserFlags(f *pflag.FlagSet) {
	f.Bool("browser", false, "Show browser window")
	f.String("browser-path", "", "Path to a Chrome or Chromium binary")
	f.Duration("timeout", 45*time.Second, "Timeout for page loads and snapshots")
	f.String("user-agent", "", "User agent for page and media requests")
}

func addDownloadFlags(f *pflag.FlagSet) {
	f.IntP("concurrent", "N", 3, "Concurrent downloads")
	f.StringP("rate", "r", "inf", "Maximum download rate per download")
	f.IntP("retries", "R", 3, "Number of download retries")
	f.StringP("output-folder", "o", "downloads", "Directory downloads are saved to")
	f.Bool("skip-existing", false, "Skip existing files")
	f.String("ffmpeg", "", "Path to ffmpeg, used to remux HLS streams")
}

func newScanCommand(args *Args) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan URL",
		Short: "Scan a page once and list the videos on it",
		Args:  cobra.ExactArgs(1),
		Run:   selected(args, CommandScan),
	}
	f := cmd.Flags()
	f.BoolVar(&args.Static, "static", false, "Fetch the page over HTTP instead of rendering it in a browser")
	addDiscoveryFlags(f)
	addBrowserFlags(f)
	return cmd
}

func newWatchCommand(args *Args) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch URL",
		Short: "Keep listing the videos of a page as it changes",
		Args:  cobra.ExactArgs(1),
		Run:   selected(args, CommandWatch),
	}
	f := cmd.Flags()
	addDiscoveryFlags(f)
	addBrowserFlags(f)
	return cmd
}

func newServeCommand(args *Args) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve URL",
		Short: "Watch a page and serve its videos and downloads over HTTP",
		Args:  cobra.ExactArgs(1),
		Run:   selected(args, CommandServe),
	}
	f := cmd.Flags()
	f.String("addr", ":8080", "Listen address of the HTTP API")
	addDiscoveryFlags(f)
	addBrowserFlags(f)
	addDownloadFlags(f)
	return cmd
}

func newDownloadCommand(args *Args) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Scan a page and download the videos on it",
		Args:  cobra.ExactArgs(1),
		Run:   selected(args, CommandDownload),
	}
	f := cmd.Flags()
	f.StringVarP(&args.Videos, "videos", "v", "all", "Ids of the videos to download (e.g. 1-3,5)")
	f.BoolVar(&args.Static, "static", false, "Fetch the page over HTTP instead of rendering it in a browser")
	addDiscoveryFlags(f)
	addBrowserFlags(f)
	addDownloadFlags(f)
	return cmd
}
