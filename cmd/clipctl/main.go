package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"clip-compiler/internal/clips"
	"clip-compiler/internal/poller"
)

const defaultServer = "http://localhost:8080"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Cancel on interrupt so a half-tracked job doesn't strand the terminal
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	var err error
	switch os.Args[1] {
	case "submit":
		err = runSubmit(ctx, os.Args[2:])
	case "track":
		err = runTrack(ctx, os.Args[2:])
	case "cancel":
		err = runCancel(ctx, os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Clip Compiler Client")
	fmt.Println("")
	fmt.Println("Usage: clipctl <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  submit  - Upload sources and start a compilation job")
	fmt.Println("  track   - Follow a job's progress until it finishes")
	fmt.Println("  cancel  - Request job cancellation")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  CLIP_SERVER - Server address (default: %s)\n", defaultServer)
}

func serverFlag(fs *flag.FlagSet) *string {
	fallback := os.Getenv("CLIP_SERVER")
	if fallback == "" {
		fallback = defaultServer
	}
	return fs.String("server", fallback, "server address")
}

func runSubmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	server := serverFlag(fs)
	clipsSpec := fs.String("clips", "", "comma-separated clips, each source:start:duration")
	follow := fs.Bool("track", true, "follow job progress after submitting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("no source files given")
	}
	clipList, err := parseClips(*clipsSpec, len(files))
	if err != nil {
		return err
	}

	client := poller.New(*server)

	sources := make([]poller.UploadedSource, 0, len(files))
	for _, path := range files {
		fmt.Printf("Uploading %s...\n", path)
		source, err := client.UploadFile(ctx, path)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", path, err)
		}
		if source.FileID != "" {
			fmt.Printf("  uploaded as %s (%d bytes)\n", source.FileID, source.Size)
		} else {
			fmt.Println("  chunked upload unavailable, will attach inline")
		}
		sources = append(sources, source)
	}

	jobID, err := client.Submit(ctx, sources, clipList)
	if err != nil {
		return err
	}
	fmt.Printf("Job accepted: %s\n", jobID)

	if !*follow {
		return nil
	}
	return trackJob(ctx, client, jobID)
}

func runTrack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	server := serverFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: clipctl track <jobId>")
	}
	return trackJob(ctx, poller.New(*server), fs.Arg(0))
}

func runCancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	server := serverFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: clipctl cancel <jobId>")
	}

	if err := poller.New(*server).Cancel(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Println("Cancellation requested.")
	return nil
}

func trackJob(ctx context.Context, client *poller.Client, jobID string) error {
	final, err := client.Track(ctx, jobID, func(u poller.Update) {
		fmt.Printf("\r\033[K[%3.0f%%] %s", u.Percent, u.Stage)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	switch {
	case final.DownloadURL != "":
		fmt.Printf("Done: %s%s\n", client.BaseURL, final.DownloadURL)
	case final.Stage == "Cancelled":
		fmt.Println("Job was cancelled.")
	}
	return nil
}

// parseClips turns "source:start:duration,..." into the clip list.
// Timeline position follows the listed order.
func parseClips(spec string, sourceCount int) ([]clips.Clip, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("no clips given, use -clips \"source:start:duration,...\"")
	}

	var list []clips.Clip
	for i, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("clip %d: expected source:start:duration, got %q", i, entry)
		}

		source, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("clip %d: bad source number %q", i, parts[0])
		}
		if source < 0 || source >= sourceCount {
			return nil, fmt.Errorf("clip %d: source %d out of range, %d files given", i, source, sourceCount)
		}
		start, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || start < 0 {
			return nil, fmt.Errorf("clip %d: bad start time %q", i, parts[1])
		}
		duration, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || duration <= 0 {
			return nil, fmt.Errorf("clip %d: bad duration %q", i, parts[2])
		}

		list = append(list, clips.Clip{
			SourceIndex: source,
			Start:       start,
			Duration:    duration,
			Position:    i,
		})
	}
	return list, nil
}
