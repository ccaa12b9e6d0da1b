// Command docgen scans the annotated HTTP handlers in internal/api and writes
// the AsciiDoc API reference served under /docs.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

type Endpoint struct {
	Title       string
	Route       string
	Description string
	Response    string
}

// Method returns the HTTP method of the route.
func (e Endpoint) Method() string {
	return strings.SplitN(e.Route, " ", 2)[0]
}

// Path returns the route path without method and query parameters.
func (e Endpoint) Path() string {
	p := strings.TrimPrefix(e.Route, e.Method()+" ")
	return strings.SplitN(p, "?", 2)[0]
}

// Params returns the query parameter names of the route.
func (e Endpoint) Params() []string {
	parts := strings.SplitN(e.Route, "?", 2)
	if len(parts) < 2 {
		return nil
	}
	var out []string
	for _, kv := range strings.Split(parts[1], "&") {
		name := strings.TrimSuffix(kv, "=")
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

var (
	reTitle = regexp.MustCompile(`// @Title: (.*)`)
	reRoute = regexp.MustCompile(`// @Route: (.*)`)
	reDesc  = regexp.MustCompile(`// @Description: (.*)`)
	reResp  = regexp.MustCompile(`// @Response: (.*)`)
)

func main() {
	apiDir := flag.String("src", "internal/api", "directory with annotated handlers")
	out := flag.String("out", "docs/api.adoc", "output AsciiDoc file")
	flag.Parse()

	endpoints, err := scanDir(*apiDir)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if err := os.WriteFile(*out, []byte(renderAsciiDoc(endpoints)), 0o644); err != nil {
		log.Fatalf("ERROR: write %s: %v", *out, err)
	}
	fmt.Printf("Generated %s (%d endpoints)\n", *out, len(endpoints))
}

func scanDir(dir string) ([]Endpoint, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var endpoints []Endpoint
	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		eps, err := scanFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, eps...)
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return endpoints[i].Path() < endpoints[j].Path()
	})
	return endpoints, nil
}

func scanFile(path string) ([]Endpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var endpoints []Endpoint
	var current Endpoint
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		if match := reTitle.FindStringSubmatch(line); len(match) > 1 {
			current.Title = strings.TrimSpace(match[1])
		}
		if match := reRoute.FindStringSubmatch(line); len(match) > 1 {
			current.Route = strings.TrimSpace(match[1])
		}
		if match := reDesc.FindStringSubmatch(line); len(match) > 1 {
			current.Description = strings.TrimSpace(match[1])
		}
		if match := reResp.FindStringSubmatch(line); len(match) > 1 {
			current.Response = strings.TrimSpace(match[1])
			// @Response closes the block
			if current.Title != "" && current.Route != "" {
				endpoints = append(endpoints, current)
			}
			current = Endpoint{}
		}
	}
	return endpoints, scanner.Err()
}

func renderAsciiDoc(endpoints []Endpoint) string {
	var b strings.Builder
	b.WriteString("= API Reference\n")
	b.WriteString(":toc:\n\n")
	b.WriteString("Generated by `go run ./cmd/docgen` from the handler annotations in `internal/api`. Do not edit by hand.\n\n")

	b.WriteString("[cols=\"1,3,4\",options=\"header\"]\n|===\n|Method |Route |Summary\n")
	for _, ep := range endpoints {
		fmt.Fprintf(&b, "|%s |`%s` |%s\n", ep.Method(), ep.Path(), ep.Title)
	}
	b.WriteString("|===\n")

	for _, ep := range endpoints {
		fmt.Fprintf(&b, "\n== %s\n\n", ep.Title)
		fmt.Fprintf(&b, "`%s %s`\n\n", ep.Method(), ep.Path())
		b.WriteString(ep.Description + ".\n")
		if params := ep.Params(); len(params) > 0 {
			b.WriteString("\nQuery parameters:\n\n")
			for _, p := range params {
				fmt.Fprintf(&b, "* `%s`\n", p)
			}
		}
		b.WriteString("\nResponse:\n\n")
		fmt.Fprintf(&b, "----\n%s\n----\n", ep.Response)
	}
	return b.String()
}
