// inspector reads audit JSONL files produced by the gateway and prints
// a per-route summary or the matching raw entries.
//
//	inspector -file logs/audit-2026-08-27.jsonl
//	inspector -file logs/audit-2026-08-27.jsonl -path /v1/positions/open -raw
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/flowforge/ostiumgate/internal/model"
)

func main() {
	file := flag.String("file", "", "audit JSONL file to inspect")
	pathFilter := flag.String("path", "", "only include entries for this route")
	minStatus := flag.Int("min-status", 0, "only include entries with status >= this")
	raw := flag.Bool("raw", false, "print matching entries instead of the summary")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open %s: %v", *file, err)
	}
	defer f.Close()

	type routeStats struct {
		count   int
		errors  int
		totalMs int64
	}
	stats := make(map[string]*routeStats)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		var entry model.AuditLog
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if *pathFilter != "" && entry.Path != *pathFilter {
			continue
		}
		if entry.StatusCode < *minStatus {
			continue
		}
		if *raw {
			fmt.Println(scanner.Text())
			continue
		}
		s := stats[entry.Path]
		if s == nil {
			s = &routeStats{}
			stats[entry.Path] = s
		}
		s.count++
		s.totalMs += entry.LatencyMs
		if entry.StatusCode >= 400 {
			s.errors++
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}
	if *raw {
		return
	}

	paths := make([]string, 0, len(stats))
	for p := range stats {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fmt.Printf("%-32s %8s %8s %10s\n", "route", "count", "errors", "avg ms")
	for _, p := range paths {
		s := stats[p]
		avg := float64(s.totalMs) / float64(s.count)
		fmt.Printf("%-32s %8d %8d %10.1f\n", p, s.count, s.errors, avg)
	}
}
