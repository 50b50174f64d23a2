//go:build ignore

// Analyze-captures decodes a capture of wire frames taken from a gateway
// log. Input is one hex-encoded frame per line; blank lines and lines
// starting with '#' are skipped. Fragmented messages are reassembled per
// file, and anything that decodes as a state response is printed in full.
//
// Usage: go run tools/analyze-captures.go <capture-file> [...]
package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/muurk/ledble/internal/state"
	"github.com/muurk/ledble/internal/transport"
)

// Statistics tracks decoding results across all input files.
type Statistics struct {
	TotalLines    int
	FrameSuccess  int
	FrameFailure  int
	Reassembled   int
	StateDecoded  int
	CommandCounts map[uint16]int
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: analyze-captures <capture-file> [...]")
		fmt.Println("Example: analyze-captures captures/bedroom-20260814.txt")
		os.Exit(1)
	}

	stats := &Statistics{CommandCounts: make(map[uint16]int)}
	for _, path := range os.Args[1:] {
		if err := analyzeFile(path, stats); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Println("\n=== Summary ===")
	fmt.Printf("Lines:            %d\n", stats.TotalLines)
	fmt.Printf("Frames decoded:   %d\n", stats.FrameSuccess)
	fmt.Printf("Frames rejected:  %d\n", stats.FrameFailure)
	fmt.Printf("Messages:         %d\n", stats.Reassembled)
	fmt.Printf("State responses:  %d\n", stats.StateDecoded)
	for cmd, n := range stats.CommandCounts {
		fmt.Printf("  command 0x%04X: %d\n", cmd, n)
	}
}

func analyzeFile(path string, stats *Statistics) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var reassembler transport.Reassembler
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
			stats.FrameFailure++
			continue
		}

		frame, err := transport.Unmarshal(raw)
		if err != nil {
			fmt.Printf("%s:%d: bad frame: %v\n", path, lineNum, err)
			stats.FrameFailure++
			continue
		}
		stats.FrameSuccess++
		// Continuation frames carry no command id.
		if frame.Frag == transport.FragSingle || frame.SegmentIndex() == 0 {
			stats.CommandCounts[frame.Command]++
		}

		result, err := reassembler.Add(frame)
		if err != nil {
			fmt.Printf("%s:%d: reassembly: %v\n", path, lineNum, err)
			reassembler.Reset()
			continue
		}
		if !result.Complete {
			continue
		}
		stats.Reassembled++

		st, err := state.Parse(result.Data)
		if err != nil {
			fmt.Printf("%s:%d: message (cmd 0x%04X): % X\n",
				path, lineNum, frame.Command, result.Data)
			continue
		}
		stats.StateDecoded++
		fmt.Printf("%s:%d: %s\n", path, lineNum, st)
	}
	return scanner.Err()
}
