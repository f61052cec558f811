// Package main provides the entry point for the sitegraph CLI.
//
// sitegraph crawls a single website breadth-first and records its link
// graph in plain text logs, resuming where the previous run stopped.
//
// Usage:
//
//	sitegraph --root https://example.org
//	sitegraph --reset
//	sitegraph export --rank pagerank.txt --out pagerank.json
package main

func main() {
	Execute()
}
