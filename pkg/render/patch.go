// Package render turns snapshot changes into review artifacts: a unified
// patch of the YAML documents and a markdown summary of a SnapshotDiff.
package render

import (
	"bytes"
	"fmt"
	"strings"

	kstore "github.com/goliatone/go-kstore"
	"github.com/pmezard/go-difflib/difflib"
	godiff "github.com/sourcegraph/go-diff/diff"
	"gopkg.in/yaml.v3"
)

// DefaultContextLines is the number of unchanged lines kept around a hunk.
const DefaultContextLines = 3

// PatchOptions names the two sides of a patch.
type PatchOptions struct {
	OrigName string
	NewName  string
	Context  int
}

func (o PatchOptions) withDefaults() PatchOptions {
	if o.OrigName == "" {
		o.OrigName = "a/knowledge.yaml"
	}
	if o.NewName == "" {
		o.NewName = "b/knowledge.yaml"
	}
	if o.Context <= 0 {
		o.Context = DefaultContextLines
	}
	return o
}

// Patch renders both snapshots as YAML and returns the line diff between
// them. Identical documents produce a FileDiff without hunks.
func Patch(before, after kstore.Snapshot, opts PatchOptions) (*godiff.FileDiff, error) {
	opts = opts.withDefaults()
	a, err := yaml.Marshal(before)
	if err != nil {
		return nil, fmt.Errorf("render: encode before: %w", err)
	}
	b, err := yaml.Marshal(after)
	if err != nil {
		return nil, fmt.Errorf("render: encode after: %w", err)
	}
	if bytes.Equal(a, b) {
		return &godiff.FileDiff{OrigName: opts.OrigName, NewName: opts.NewName}, nil
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(string(a)),
		B:        splitLines(string(b)),
		FromFile: opts.OrigName,
		ToFile:   opts.NewName,
		Context:  opts.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("render: diff documents: %w", err)
	}
	fd, err := godiff.ParseFileDiff([]byte(unified))
	if err != nil {
		return nil, fmt.Errorf("render: parse patch: %w", err)
	}
	return fd, nil
}

// PatchText is Patch printed in unified format.
func PatchText(before, after kstore.Snapshot, opts PatchOptions) (string, error) {
	fd, err := Patch(before, after, opts)
	if err != nil {
		return "", err
	}
	if len(fd.Hunks) == 0 {
		return "", nil
	}
	out, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("render: print patch: %w", err)
	}
	return string(out), nil
}

// LineStat counts the lines a patch adds and removes.
type LineStat struct {
	Added   int
	Removed int
}

// Lines counts added and removed lines across every hunk of fd.
func Lines(fd *godiff.FileDiff) LineStat {
	var stat LineStat
	if fd == nil {
		return stat
	}
	for _, hunk := range fd.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				stat.Added++
			case strings.HasPrefix(line, "-"):
				stat.Removed++
			}
		}
	}
	return stat
}

func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
