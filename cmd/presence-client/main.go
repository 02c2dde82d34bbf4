// Command presence-client joins a presence server from the terminal. Each
// "lat lng" line read from stdin is sent as the participant's position and
// the view is printed whenever it changes.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"geopresence/client"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	var (
		url     string
		name    string
		id      string
		verbose bool
	)

	flagSet := pflag.NewFlagSet("presence-client", pflag.ContinueOnError)
	flagSet.StringVar(&url, "url", "ws://localhost:8080/ws", "presence server WebSocket URL")
	flagSet.StringVarP(&name, "name", "n", "", "display name (required)")
	flagSet.StringVar(&id, "id", "", "reuse a previous participant identifier instead of generating one")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log protocol activity to stderr")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if name == "" {
		return fmt.Errorf("--name is required")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	opts := []client.Option{
		client.OnChange(func(view []client.Entry) { printView(out, view) }),
		client.OnError(func(msg string) { fmt.Fprintf(out, "rejected: %s\n", msg) }),
	}
	if id != "" {
		opts = append(opts, client.WithID(id))
	}
	session := client.New(name, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := session.Connect(dialCtx, url); err != nil {
		return err
	}
	defer session.Close()
	fmt.Fprintf(out, "connected as %s (%s); enter \"lat lng\" to move\n", session.Name(), session.ID())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return fmt.Errorf("connection to %s closed", url)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			lat, lng, err := parseCoordinates(line)
			if err != nil {
				fmt.Fprintf(out, "%v\n", err)
				continue
			}
			if err := session.UpdatePosition(lat, lng); err != nil {
				return err
			}
		}
	}
}

func parseCoordinates(line string) (lat, lng float64, err error) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected \"lat lng\", got %q", line)
	}
	if lat, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", fields[0])
	}
	if lng, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", fields[1])
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0, 0, fmt.Errorf("coordinates must be finite numbers")
	}
	return lat, lng, nil
}

func printView(out io.Writer, view []client.Entry) {
	fmt.Fprintln(out, "---")
	for _, e := range view {
		label := e.DisplayName
		if e.Self {
			label += " (you)"
		}
		if !e.Located {
			fmt.Fprintf(out, "%s  no position yet\n", label)
			continue
		}
		fmt.Fprintf(out, "%s  lat %.4f lng %.4f  %s\n", label, e.Lat, e.Lng, e.ID)
	}
}
