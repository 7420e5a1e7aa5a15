//go:build ignore

// Package main generates a synthetic grant corpus for load testing.
// Usage: go run scripts/generate-grants.go -n 5000 -output testdata/grants.csv
//
// Abstracts are assembled from per-category vocabularies, so lexical and
// dense retrieval both have something to separate. The file has the
// award_title, category and abstract columns grantlens expects.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	numGrants = flag.Int("n", 5000, "Number of grants to generate")
	output    = flag.String("output", "testdata/grants.csv", "Output CSV path")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	categories = map[string][]string{
		"BIO": {"protein", "genome", "cell", "tumor", "microbial", "enzyme", "neural", "immune", "biomarker", "tissue"},
		"CNS": {"network", "cloud", "attack", "protocol", "encryption", "intrusion", "wireless", "latency", "malware", "routing"},
		"IIS": {"learning", "language", "vision", "robot", "recommendation", "fairness", "reasoning", "dialogue", "planning", "retrieval"},
		"DMS": {"algebra", "topology", "stochastic", "optimization", "graph", "manifold", "inference", "estimation", "lattice", "combinatorics"},
		"GEO": {"ocean", "climate", "sediment", "glacier", "seismic", "aquifer", "watershed", "volcanic", "coastal", "permafrost"},
	}

	openers = []string{
		"This project develops",
		"The proposed research investigates",
		"This award supports",
		"The team will study",
		"This collaborative effort builds",
	}

	methods = []string{
		"scalable models of", "new measurements of", "theory for", "open tools for",
		"field experiments on", "large-scale simulations of", "benchmarks for",
	}

	impacts = []string{
		"Results will be shared through open-source software and public datasets.",
		"The project trains graduate students and engages undergraduate researchers.",
		"Outreach activities reach high school students in underserved communities.",
		"Findings will inform practitioners and policy makers.",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *output, err)
		os.Exit(1)
	}
	defer f.Close()

	codes := make([]string, 0, len(categories))
	for code := range categories {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	w := csv.NewWriter(f)
	_ = w.Write([]string{"award_title", "category", "abstract"})
	for i := 0; i < *numGrants; i++ {
		code := codes[rng.Intn(len(codes))]
		title, abstract := generateGrant(rng, categories[code])
		if err := w.Write([]string{title, code, abstract}); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing grant %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing CSV: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d grants in %s\n", *numGrants, *output)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func generateGrant(rng *rand.Rand, vocab []string) (string, string) {
	a, b := pick(rng, vocab), pick(rng, vocab)
	title := fmt.Sprintf("%s %s %s", strings.ToUpper(a[:1])+a[1:], b, pick(rng, []string{"dynamics", "systems", "foundations", "analysis"}))

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s %s. ", pick(rng, openers), pick(rng, methods), a, b)
	for j := 0; j < 2+rng.Intn(3); j++ {
		fmt.Fprintf(&sb, "It examines how %s and %s interact under %s conditions. ",
			pick(rng, vocab), pick(rng, vocab), pick(rng, []string{"realistic", "extreme", "changing", "controlled"}))
	}
	sb.WriteString(pick(rng, impacts))
	return title, sb.String()
}
