//go:build ignore

// Validate-adverts runs the advertisement parser over a corpus of captured
// manufacturer-data payloads and reports what parsed and what did not.
// Input is one hex-encoded advertisement per line; the layout is inferred
// from the length (29 bytes = embedded company identifier, 27 bytes =
// out-of-band). Lines starting with '#' are skipped.
//
// Usage: go run tools/validate-adverts.go <file> [...]
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/muurk/ledble/internal/advertise"
)

// outOfBandCompany is used for 27-byte payloads, which do not carry the
// company identifier themselves.
const outOfBandCompany = 0x5A00

// Statistics tracks parsing results.
type Statistics struct {
	TotalLines   int
	ParseSuccess int
	ParseFailure int
	Products     map[uint16]int
	Versions     map[uint8]int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate-adverts <file> [...]")
		fmt.Println("Example: validate-adverts captures/adverts-livingroom.txt")
		os.Exit(1)
	}

	stats := &Statistics{
		Products: make(map[uint16]int),
		Versions: make(map[uint8]int),
	}
	for _, path := range os.Args[1:] {
		if err := validateFile(path, stats); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Println("\n=== Summary ===")
	fmt.Printf("Lines:    %d\n", stats.TotalLines)
	fmt.Printf("Parsed:   %d\n", stats.ParseSuccess)
	fmt.Printf("Rejected: %d\n", stats.ParseFailure)
	fmt.Println("Products:")
	for id, n := range stats.Products {
		fmt.Printf("  0x%04X: %d\n", id, n)
	}
	fmt.Println("Protocol versions:")
	for v, n := range stats.Versions {
		fmt.Printf("  %d: %d\n", v, n)
	}
}

func validateFile(path string, stats *Statistics) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.TotalLines++

		raw, err := hex.DecodeString(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			fmt.Printf("%s:%d: bad hex: %v\n", path, lineNum, err)
			stats.ParseFailure++
			continue
		}

		var id *advertise.DeviceIdentity
		switch len(raw) {
		case advertise.LayoutASize:
			id, err = advertise.Parse(raw, advertise.LayoutA, 0)
		case advertise.LayoutBSize:
			id, err = advertise.ParseWithCompanyID(raw, outOfBandCompany)
		default:
			err = fmt.Errorf("unexpected length %d", len(raw))
		}
		if err != nil {
			fmt.Printf("%s:%d: %v\n", path, lineNum, err)
			stats.ParseFailure++
			continue
		}

		stats.ParseSuccess++
		stats.Products[id.ProductID]++
		stats.Versions[id.Version]++
		fmt.Printf("%s:%d: %s\n", path, lineNum, id)
	}
	return scanner.Err()
}
