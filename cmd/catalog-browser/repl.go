package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/trade-engine/catalog-browser/internal/browser"
	"github.com/trade-engine/catalog-browser/internal/catalog"
	"github.com/trade-engine/catalog-browser/internal/currency"
	"github.com/trade-engine/catalog-browser/internal/domain"
	arrowsink "github.com/trade-engine/catalog-browser/internal/sink/arrow"
)

var errQuit = errors.New("quit")

type repl struct {
	b         *browser.Browser
	in        *bufio.Reader
	out       io.Writer
	exportDir string
}

func newREPL(b *browser.Browser, in *bufio.Reader, out io.Writer, exportDir string) *repl {
	return &repl{b: b, in: in, out: out, exportDir: exportDir}
}

// run reads commands until EOF, quit, or ctx ends.
func (r *repl) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.out, "> ")

		line, err := r.in.ReadString('\n')
		if line != "" {
			if execErr := r.execute(ctx, line); errors.Is(execErr, errQuit) {
				return nil
			} else if execErr != nil {
				fmt.Fprintln(r.out, "error:", execErr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
	}
}

func (r *repl) execute(ctx context.Context, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	cmd, arg = strings.ToLower(cmd), strings.TrimSpace(arg)

	switch cmd {
	case "":
		return nil
	case "search":
		r.b.Search(arg)
		r.renderPage()
	case "sort":
		key := catalog.ParseSortKey(arg)
		r.b.Apply(catalog.Patch{SortKey: &key})
		r.renderPage()
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("page number: %w", err)
		}
		r.b.Apply(catalog.Patch{CurrentPage: &n})
		r.renderPage()
	case "next":
		view := r.b.Page()
		if !view.HasNext {
			fmt.Fprintln(r.out, "Already on the last page.")
			return nil
		}
		n := view.Number + 1
		r.b.Apply(catalog.Patch{CurrentPage: &n})
		r.renderPage()
	case "prev":
		view := r.b.Page()
		if !view.HasPrev {
			fmt.Fprintln(r.out, "Already on the first page.")
			return nil
		}
		// a page past the end steps back onto the last one
		n := min(view.Number-1, max(view.TotalPages, 1))
		r.b.Apply(catalog.Patch{CurrentPage: &n})
		r.renderPage()
	case "currency":
		code := strings.ToUpper(arg)
		if code == "" || strings.EqualFold(arg, currency.NoConversion) || code == "NONE" {
			code = currency.NoConversion
		}
		r.b.Apply(catalog.Patch{Currency: &code})
		r.renderPage()
	case "add":
		if err := r.b.AddToCart(domain.ItemID(arg)); err != nil {
			return err
		}
		r.renderCart()
	case "remove":
		n, err := r.b.RemoveFromCart(domain.ItemID(arg))
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintf(r.out, "%s is not in your cart\n", arg)
		}
		r.renderCart()
	case "toggle":
		if err := r.b.ToggleDetail(domain.ItemID(arg)); err != nil {
			return err
		}
		r.renderPage()
	case "cart":
		r.renderCart()
	case "reset":
		if _, err := r.b.ResetCart(ctx); err != nil {
			return err
		}
		r.renderCart()
	case "export":
		path, err := r.b.Export(arg)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, "exported to", path)
	case "exports":
		return r.renderExports(arg)
	case "help":
		r.renderHelp()
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (r *repl) renderPage() {
	view := r.b.Page()

	switch view.Status {
	case catalog.StatusLoading:
		fmt.Fprintln(r.out, "Loading...")
		return
	case catalog.StatusEmpty:
		fmt.Fprintln(r.out, strings.ToUpper(view.Message))
		return
	}

	sortKey := string(view.State.SortKey)
	if sortKey == "" {
		sortKey = "default"
	}
	fmt.Fprintf(r.out, "Page %d/%d (%d items) | sort: %s | currency: %s",
		view.Number, view.TotalPages, view.Total, sortKey, view.State.Currency)
	if view.State.Query != "" {
		fmt.Fprintf(r.out, " | search: %q", view.State.Query)
	}
	fmt.Fprintln(r.out)

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for _, row := range view.Rows {
		mark := "[ ]"
		if row.InCart {
			mark = "[x]"
		}
		date := ""
		if !row.Item.AddedDate.IsZero() {
			date = row.Item.AddedDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			mark, row.Item.ID, row.Item.Name, row.Item.Level, date, row.DisplayPrice)
		if row.Open {
			fmt.Fprintf(tw, "\t\t%s\t\t\t\n", describe(row.Item))
		}
	}
	tw.Flush()
}

func describe(item domain.Item) string {
	parts := make([]string, 0, 3)
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	if item.Author != "" {
		parts = append(parts, "by "+item.Author)
	}
	if item.Duration != "" {
		parts = append(parts, item.Duration)
	}
	if len(parts) == 0 {
		return "(no description)"
	}
	return strings.Join(parts, " | ")
}

func (r *repl) renderCart() {
	cv := r.b.Cart()
	if len(cv.Lines) == 0 {
		fmt.Fprintln(r.out, "Your cart is empty.")
		return
	}

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for _, line := range cv.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", line.Entry.ID, line.Entry.Name, line.DisplayPrice)
	}
	fmt.Fprintf(tw, "\tTotal\t%s\n", cv.Total)
	tw.Flush()
}

func (r *repl) renderHelp() {
	keys := make([]string, 0, len(catalog.SortKeys()))
	for _, k := range catalog.SortKeys() {
		keys = append(keys, string(k))
	}
	currencies := r.b.Page().Currencies

	fmt.Fprintf(r.out, `Commands:
  search <text>     filter by name (empty text clears)
  sort <key>        one of %s; anything else restores the default
  page <n>          jump to page n; next / prev step
  currency <code>   one of %s
  add <id>          put an item in the cart
  remove <id>       take an item out of the cart
  toggle <id>       show or hide an item's description
  cart              show the cart
  reset             empty the cart
  export [dir]      write the current view as an Arrow file
  exports [dir]     list earlier exports
  quit
`, strings.Join(keys, ", "), strings.Join(currencies, ", "))
}

func (r *repl) renderExports(dir string) error {
	if dir == "" {
		dir = r.exportDir
	}
	entries, err := arrowsink.ReadManifest(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "No exports yet.")
		return nil
	}

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d rows\t%q\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Count, e.Query, e.SortKey, e.FilePath)
	}
	return tw.Flush()
}
