package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gamma-omg/rag-ledger/ledger"
)

// maxLineSize bounds a single console line, pasted documents included.
const maxLineSize = 16 * 1024 * 1024

const adminHelp = `Commands:
  get <id>          show a block by id
  add <path>        split a file into blocks and add them
  text <name>       add text typed on the following lines, finished by a line with a single "."
  search <query>    similarity search
  k <n>             number of search results
  help              show this help
  exit              quit`

// adminConsole is a line-oriented console over the ledger. Failures are
// printed and the console keeps running.
type adminConsole struct {
	ledger blockLedger
	reader FileReader
	k      int
	in     *bufio.Scanner
	out    io.Writer
}

func newAdminConsole(l blockLedger, reader FileReader, k int, in io.Reader, out io.Writer) *adminConsole {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &adminConsole{
		ledger: l,
		reader: reader,
		k:      k,
		in:     scanner,
		out:    out,
	}
}

func (c *adminConsole) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, titleStyle.Render("Vector DB admin"))
	fmt.Fprintln(c.out, adminHelp)

	for {
		fmt.Fprint(c.out, "\n> ")
		if !c.in.Scan() {
			return c.in.Err()
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(c.in.Text()), " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "":
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(c.out, adminHelp)
		case "get":
			c.get(ctx, arg)
		case "add":
			c.addFile(ctx, arg)
		case "text":
			c.addText(ctx, arg)
		case "search":
			c.search(ctx, arg)
		case "k":
			c.setK(arg)
		default:
			fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf("Unknown command %q, type help.", cmd)))
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *adminConsole) get(ctx context.Context, id string) {
	if id == "" {
		fmt.Fprintln(c.out, warnStyle.Render("Enter an id."))
		return
	}

	r, ok, err := c.ledger.Get(ctx, id)
	if err != nil {
		renderError(c.out, err)
		return
	}
	if !ok {
		fmt.Fprintln(c.out, errStyle.Render("No block with this id."))
		return
	}

	renderRecord(c.out, r)
}

func (c *adminConsole) addFile(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(c.out, warnStyle.Render("Enter a file path."))
		return
	}
	if !c.reader.CanRead(path) {
		fmt.Fprintln(c.out, warnStyle.Render("Unsupported file type."))
		return
	}

	text, err := c.reader.ReadText(path)
	if err != nil {
		renderError(c.out, err)
		return
	}

	c.ingest(ctx, text, filepath.Base(path))
}

func (c *adminConsole) addText(ctx context.Context, name string) {
	if name == "" {
		name = defaultSourceName
	}

	var lines []string
	for c.in.Scan() {
		line := c.in.Text()
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	if err := c.in.Err(); err != nil {
		renderError(c.out, fmt.Errorf("text not added: %w", err))
		return
	}

	c.ingest(ctx, strings.Join(lines, "\n"), name)
}

func (c *adminConsole) ingest(ctx context.Context, text string, source string) {
	records, err := c.ledger.IngestText(ctx, text, source)
	if errors.Is(err, ledger.ErrEmptyInput) {
		fmt.Fprintln(c.out, warnStyle.Render("Empty content."))
		return
	}
	if err != nil {
		renderError(c.out, err)
		return
	}

	renderAdded(c.out, records)
}

func (c *adminConsole) search(ctx context.Context, query string) {
	if query == "" {
		fmt.Fprintln(c.out, warnStyle.Render("Enter a query."))
		return
	}

	res, err := c.ledger.Search(ctx, query, c.k)
	if err != nil {
		renderError(c.out, err)
		return
	}

	renderResults(c.out, res)
}

func (c *adminConsole) setK(arg string) {
	k, err := strconv.Atoi(arg)
	if err != nil || k <= 0 {
		fmt.Fprintln(c.out, warnStyle.Render("k must be a positive number."))
		return
	}

	c.k = k
	fmt.Fprintf(c.out, "Showing %d results.\n", k)
}
