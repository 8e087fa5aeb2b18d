// Package main is sourcectl, an operator CLI that queries the configured
// sources directly without running the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"media-source-go/internal/app"
	"media-source-go/pkg/config"
	"media-source-go/pkg/httpclient"
	"media-source-go/pkg/logging"
	"media-source-go/pkg/paging"
	"media-source-go/pkg/services"
	"media-source-go/pkg/types"
)

type command struct {
	usage string
	help  string
	args  int
	run   func(ctx context.Context, c *services.Catalog, opts options, args []string) error
}

type options struct {
	pages int
}

var commands = map[string]command{
	"sources":    {"sources", "List registered sources and their capabilities", 0, runSources},
	"home":       {"home <source>", "Print the home page sections of a source", 1, runHome},
	"search":     {"search [-pages N] <source> <keyword>", "Search a source", 2, runSearch},
	"detail":     {"detail <source> <content-id>", "Print a title with its play lists", 2, runDetail},
	"play":       {"play <source> <content-id> <episode-id>", "Resolve the playable URL of an episode", 3, runPlay},
	"timeline":   {"timeline <source>", "Print the weekly release schedule", 1, runTimeline},
	"categories": {"categories <source> [key=value ...]", "Print category groups under the given selections", 1, runCategories},
	"browse":     {"browse [-pages N] <source> [key=value ...]", "List titles matching a category selection", 1, runBrowse},
}

var order = []string{"sources", "home", "search", "detail", "play", "timeline", "categories", "browse"}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		usage()
		os.Exit(2)
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var opts options
	fs.IntVar(&opts.pages, "pages", 1, "Number of pages to fetch")
	verbose := fs.Bool("v", false, "Log upstream requests to stderr")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sourcectl %s\n\n%s\n\nOptions:\n", cmd.usage, cmd.help)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < cmd.args {
		fs.Usage()
		os.Exit(2)
	}

	if err := run(cmd, opts, *verbose, fs.Args()); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func run(cmd command, opts options, verbose bool, args []string) error {
	cfg := config.Load()
	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logging.New(level, false, os.Stderr)

	reg, err := app.NewRegistry(cfg, log, httpclient.New(cfg, log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return cmd.run(ctx, services.NewCatalog(reg, log), opts, args)
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: sourcectl <command> [options] [args]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, name := range order {
		fmt.Fprintf(os.Stderr, "  %-48s %s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprintln(os.Stderr, "\nExamples:")
	fmt.Fprintln(os.Stderr, "  sourcectl search -pages 2 czzy 葬送的芙莉莲")
	fmt.Fprintln(os.Stderr, "  sourcectl categories mxdm type=1")
	fmt.Fprintln(os.Stderr, "  sourcectl play anime1 27314 27314")
}

func runSources(_ context.Context, c *services.Catalog, _ options, _ []string) error {
	renderSources(c.Sources())
	return nil
}

func runHome(ctx context.Context, c *services.Catalog, _ options, args []string) error {
	groups, err := c.Home(ctx, args[0])
	if err != nil {
		return err
	}
	for _, g := range groups {
		pterm.DefaultSection.Println(g.Name)
		renderItems(g.Items)
	}
	return nil
}

func runSearch(ctx context.Context, c *services.Catalog, opts options, args []string) error {
	id, keyword := args[0], strings.Join(args[1:], " ")
	items, err := paging.Collect(ctx, func(ctx context.Context, page int) (*types.Page[types.ContentItem], error) {
		return c.Search(ctx, id, keyword, page)
	}, opts.pages)
	if err != nil && len(items) == 0 {
		return err
	}
	if err != nil {
		pterm.Warning.Printf("stopped early: %v\n", err)
	}
	if len(items) == 0 {
		pterm.Info.Println("No results.")
		return nil
	}
	renderItems(items)
	pterm.Info.Printf("%d result(s)\n", len(items))
	return nil
}

func runDetail(ctx context.Context, c *services.Catalog, _ options, args []string) error {
	d, err := c.Detail(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	renderDetail(d)
	return nil
}

func runPlay(ctx context.Context, c *services.Catalog, _ options, args []string) error {
	res, err := c.VideoURL(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	pterm.Success.Println(res.URL)
	if len(res.Headers) > 0 {
		renderHeaders(res.Headers)
	}
	return nil
}

func runTimeline(ctx context.Context, c *services.Catalog, _ options, args []string) error {
	tl, err := c.Timeline(ctx, args[0])
	if err != nil {
		return err
	}
	for i, day := range tl.Days {
		title := day.Name
		if i == tl.Current {
			title += " (today)"
		}
		pterm.DefaultSection.Println(title)
		renderItems(day.Items)
	}
	return nil
}

func runCategories(ctx context.Context, c *services.Catalog, _ options, args []string) error {
	id := args[0]
	sel, err := parseSelections(args[1:])
	if err != nil {
		return err
	}
	groups, err := c.CategoryGroups(ctx, id)
	if err != nil {
		return err
	}

	for _, g := range groups {
		opts, err := c.GroupOptions(ctx, id, g.Key, sel)
		if err != nil {
			pterm.Warning.Printf("%s: %v\n", g.Key, err)
			continue
		}
		renderGroup(g, opts, sel.Get(g.Key, g.Default))
	}
	return nil
}

func runBrowse(ctx context.Context, c *services.Catalog, opts options, args []string) error {
	id := args[0]
	sel, err := parseSelections(args[1:])
	if err != nil {
		return err
	}
	items, err := paging.Collect(ctx, func(ctx context.Context, page int) (*types.Page[types.ContentItem], error) {
		return c.QueryByCategory(ctx, id, sel, page)
	}, opts.pages)
	if err != nil && len(items) == 0 {
		return err
	}
	if err != nil {
		pterm.Warning.Printf("stopped early: %v\n", err)
	}
	renderItems(items)
	return nil
}

// parseSelections reads key=value arguments into a query.
func parseSelections(args []string) (types.CategoryQuery, error) {
	sel := types.CategoryQuery{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, errors.New("selections must look like key=value, got " + a)
		}
		sel[k] = v
	}
	return sel, nil
}
