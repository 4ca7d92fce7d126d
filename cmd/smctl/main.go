// smctl talks to a running servermonitor through its JSON API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
)

const usage = `usage: smctl [flags] <command>

commands:
  list                 show all targets
  add NAME URL         add a target
  edit ID NAME URL     change a target (use "" to keep a field)
  remove ID            remove a target
  check                start a check round now
  summary              show status counts
  reload               re-read the store
  save                 write the store

flags:
`

type target struct {
	ID          uint64     `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Display     string     `json:"display"`
	LastChecked *time.Time `json:"last_checked"`
}

type client struct {
	base string
	key  string
	http *http.Client
}

func main() {
	fs := pflag.NewFlagSet("smctl", pflag.ContinueOnError)
	base := fs.String("api", envOr("API_BASE", "http://127.0.0.1:8080"), "API base URL (env API_BASE)")
	key := fs.String("key", os.Getenv("API_KEY"), "API key (env API_KEY)")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	c := &client{base: strings.TrimRight(*base, "/"), key: *key, http: &http.Client{Timeout: 15 * time.Second}}
	if err := c.run(os.Stdout, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "smctl:", err)
		os.Exit(1)
	}
}

func (c *client) run(out io.Writer, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		var ts []target
		if err := c.call(http.MethodGet, "/api/targets", nil, &ts); err != nil {
			return err
		}
		return printTargets(out, ts)
	case "add":
		if len(rest) != 2 {
			return fmt.Errorf("add needs NAME URL")
		}
		var resp struct {
			Target  target `json:"target"`
			Warning string `json:"warning"`
		}
		if err := c.call(http.MethodPost, "/api/targets", map[string]string{"name": rest[0], "url": rest[1]}, &resp); err != nil {
			return err
		}
		fmt.Fprintf(out, "added %d %s\n", resp.Target.ID, resp.Target.URL)
		warn(resp.Warning)
		return nil
	case "edit":
		if len(rest) != 3 {
			return fmt.Errorf("edit needs ID NAME URL")
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		var resp struct {
			Target  target `json:"target"`
			Warning string `json:"warning"`
		}
		if err := c.call(http.MethodPatch, "/api/targets/"+id, map[string]string{"name": rest[1], "url": rest[2]}, &resp); err != nil {
			return err
		}
		fmt.Fprintf(out, "updated %d %s %s\n", resp.Target.ID, resp.Target.Name, resp.Target.URL)
		warn(resp.Warning)
		return nil
	case "remove", "rm":
		if len(rest) != 1 {
			return fmt.Errorf("remove needs ID")
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		var resp struct {
			Warning string `json:"warning"`
		}
		if err := c.call(http.MethodDelete, "/api/targets/"+id, nil, &resp); err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %s\n", id)
		warn(resp.Warning)
		return nil
	case "check":
		if err := c.call(http.MethodPost, "/api/checks", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(out, "check started")
		return nil
	case "summary":
		var s struct {
			Total, Online, Offline, Error, Pending int
			Checking                               bool
		}
		if err := c.call(http.MethodGet, "/api/summary", nil, &s); err != nil {
			return err
		}
		fmt.Fprintf(out, "total %d  online %d  offline %d  error %d  pending %d", s.Total, s.Online, s.Offline, s.Error, s.Pending)
		if s.Checking {
			fmt.Fprint(out, "  (checking)")
		}
		fmt.Fprintln(out)
		return nil
	case "reload":
		var ts []target
		if err := c.call(http.MethodPost, "/api/store/reload", nil, &ts); err != nil {
			return err
		}
		return printTargets(out, ts)
	case "save":
		if err := c.call(http.MethodPost, "/api/store/save", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(out, "saved")
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (c *client) call(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, e.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printTargets(out io.Writer, ts []target) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tURL\tSTATUS\tLAST CHECKED")
	for _, t := range ts {
		last := "-"
		if t.LastChecked != nil {
			last = t.LastChecked.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.URL, t.Display, last)
	}
	return tw.Flush()
}

func parseID(s string) (string, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return "", fmt.Errorf("bad id %q", s)
	}
	return strconv.FormatUint(n, 10), nil
}

func warn(msg string) {
	if msg != "" {
		fmt.Fprintln(os.Stderr, "warning:", msg)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
