// Command forumctl is a small terminal client for a bitboard deployment.
//
//	forumctl [-token T] threads [-category ID] [-limit N]
//	forumctl [-token T] watch [-category ID]
//	forumctl [-token T] tail <table> [filter]
//	forumctl [-token T] search <query>
//	forumctl [-token T] notifications
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"bitboard/internal/client"
	"bitboard/internal/config"
	"bitboard/internal/feed"
	"bitboard/internal/normalize"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			log.Fatal("not signed in: pass -token or set BITBOARD_TOKEN")
		}
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: forumctl [-token T] <threads|watch|tail|search|notifications> [args]")
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("forumctl", flag.ContinueOnError)
	token := fs.String("token", os.Getenv("BITBOARD_TOKEN"), "Session token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	baseURL := cfg.GatewayURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}
	c, err := client.New(baseURL, cfg.GatewayAPIKey, client.WithToken(*token))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rest := fs.Args()[1:]
	switch fs.Arg(0) {
	case "threads":
		return listThreads(ctx, c, rest, out)
	case "watch":
		return watchThreads(ctx, c, rest, out)
	case "tail":
		return tail(ctx, c, rest, out)
	case "search":
		return searchCmd(ctx, c, rest, out)
	case "notifications":
		return notifications(ctx, c, out)
	default:
		return usage()
	}
}

func listThreads(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("threads", flag.ContinueOnError)
	category := fs.Uint("category", 0, "Category ID (0 for all)")
	limit := fs.Int("limit", feed.DefaultLimit, "Threads per page")
	page := fs.Int("page", 0, "Page number, starting at 0")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := c.Threads(ctx, uint(*category), feed.Cursor{Page: *page, Limit: *limit})
	if err != nil {
		return err
	}
	printThreads(out, p.Items)
	if p.HasMore {
		fmt.Fprintf(out, "-- more: -page %d\n", p.Page+1)
	}
	return nil
}

func printThreads(out io.Writer, threads []normalize.Thread) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tAUTHOR\tPOSTS\tTITLE")
	for _, t := range threads {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", t.ID, categoryName(t), authorName(t.Author), t.PostCount, t.Title)
	}
	_ = w.Flush()
}

func categoryName(t normalize.Thread) string {
	if t.Category == nil {
		return "-"
	}
	return t.Category.Name
}

func authorName(u *normalize.UserRef) string {
	if u == nil || u.Username == "" {
		return "Unknown"
	}
	return u.Username
}

// watchThreads prints the feed once, then every live change until interrupted.
func watchThreads(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	category := fs.Uint("category", 0, "Category ID (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tf, err := c.ThreadFeed(ctx, uint(*category), feed.DefaultLimit)
	if err != nil {
		return err
	}
	defer tf.Close()

	printThreads(out, tf.List.Items())
	fmt.Fprintln(out, "-- watching for changes, ctrl-c to stop")

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	last := tf.List.Len()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tf.Done():
			return errors.New("realtime connection closed")
		case <-tick.C:
			if n := tf.List.Len(); n != last {
				last = n
				printThreads(out, head(tf.List.Items(), 5))
			}
		}
	}
}

func head[T any](xs []T, n int) []T {
	if len(xs) < n {
		return xs
	}
	return xs[:n]
}

// tail streams raw change events for a table.
func tail(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: forumctl tail <table> [column=eq.value]")
	}
	filter := ""
	if len(args) > 1 {
		filter = args[1]
	}
	enc := json.NewEncoder(out)
	sub, err := c.Subscribe(ctx, args[0], filter, client.Handlers{
		OnChange: func(ch feed.Change) { _ = enc.Encode(ch) },
	})
	if err != nil {
		return err
	}
	defer sub.Close()
	fmt.Fprintf(out, "-- subscribed to %s\n", sub.Channel)

	select {
	case <-ctx.Done():
		return nil
	case <-sub.Done():
		return sub.Err()
	}
}

func searchCmd(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: forumctl search <query>")
	}
	results, err := c.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tID\tUSER\tTEXT")
	for _, r := range results {
		text := r.Title
		if text == "" {
			text = r.Content
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.Type, r.ID, r.Username, truncate(text, 60))
	}
	return w.Flush()
}

func notifications(ctx context.Context, c *client.Client, out io.Writer) error {
	p, err := c.Notifications(ctx, feed.Cursor{})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREAD\tTYPE\tTITLE")
	for _, n := range p.Items {
		fmt.Fprintf(w, "%d\t%t\t%s\t%s\n", n.ID, n.IsRead, n.Type, n.Title)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
