// Package diffengine computes line-level differences between two versions
// of a file. Output is deterministic for identical inputs and reflexive:
// diffing a version against itself yields zero hunks. The engine is
// aspect-agnostic; semantic labeling of hunks is a separate annotation
// step driven by the caller.
package diffengine

import (
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Hunk is one contiguous before/after difference. Line ranges are 1-based;
// a pure insertion has OldCount 0 and a pure deletion has NewCount 0.
type Hunk struct {
	Before   string `json:"before"`
	After    string `json:"after"`
	OldStart int    `json:"old_start"`
	OldCount int    `json:"old_count"`
	NewStart int    `json:"new_start"`
	NewCount int    `json:"new_count"`
}

// DiffRecord pairs two versions of the same file with their ordered hunks.
// It is derived data, recomputable at any time, and never persisted.
type DiffRecord struct {
	FileID    string `json:"file_id"`
	OldNumber int    `json:"old_number"`
	NewNumber int    `json:"new_number"`
	Hunks     []Hunk `json:"hunks"`
}

// Engine computes diffs with a content-addressed result cache.
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map
}

type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates a diff engine tuned for code content.
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // favor accuracy over speed
	return &Engine{dmp: dmp}
}

// Compute diffs two contents of the same file at the line level.
func (e *Engine) Compute(fileID string, oldNumber, newNumber int, oldContent, newContent string) *DiffRecord {
	rec := &DiffRecord{
		FileID:    fileID,
		OldNumber: oldNumber,
		NewNumber: newNumber,
	}

	key := cacheKey{hash(oldContent), hash(newContent)}
	if cached, ok := e.cache.Load(key); ok {
		if hunks, ok := cached.([]Hunk); ok {
			rec.Hunks = hunks
			return rec
		}
	}

	// Line-level reduction avoids newline boundary artifacts when the
	// character diff is mapped back to line operations.
	a, b, lineArray := e.dmp.DiffLinesToChars(oldContent, newContent)
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	hunks := groupHunks(toOperations(diffs))
	e.cache.Store(key, hunks)

	rec.Hunks = hunks
	return rec
}

// ClearCache drops all cached results.
func (e *Engine) ClearCache() {
	e.cache = sync.Map{}
}

type lineKind int

const (
	lineEqual lineKind = iota
	lineRemoved
	lineAdded
)

type operation struct {
	kind    lineKind
	content string
}

// toOperations flattens diffmatchpatch output into per-line operations.
func toOperations(diffs []diffmatchpatch.Diff) []operation {
	ops := make([]operation, 0)

	for _, d := range diffs {
		lines := strings.Split(d.Text, "\n")
		// A diff ending in "\n" splits into a trailing empty element that
		// is not a line of its own.
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		for _, line := range lines {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, operation{kind: lineEqual, content: line})
			case diffmatchpatch.DiffDelete:
				ops = append(ops, operation{kind: lineRemoved, content: line})
			case diffmatchpatch.DiffInsert:
				ops = append(ops, operation{kind: lineAdded, content: line})
			}
		}
	}
	return ops
}

// groupHunks collapses contiguous changed lines into before/after hunks.
// Runs of removals and additions separated only by each other belong to
// the same hunk; an equal line closes the current hunk.
func groupHunks(ops []operation) []Hunk {
	var hunks []Hunk

	oldLine, newLine := 0, 0
	var cur *Hunk
	var before, after []string

	flush := func() {
		if cur == nil {
			return
		}
		cur.Before = strings.Join(before, "\n")
		cur.After = strings.Join(after, "\n")
		cur.OldCount = len(before)
		cur.NewCount = len(after)
		hunks = append(hunks, *cur)
		cur, before, after = nil, nil, nil
	}

	for _, op := range ops {
		switch op.kind {
		case lineEqual:
			flush()
			oldLine++
			newLine++
		case lineRemoved:
			if cur == nil {
				cur = &Hunk{OldStart: oldLine + 1, NewStart: newLine + 1}
			}
			before = append(before, op.content)
			oldLine++
		case lineAdded:
			if cur == nil {
				cur = &Hunk{OldStart: oldLine + 1, NewStart: newLine + 1}
			}
			after = append(after, op.content)
			newLine++
		}
	}
	flush()

	return hunks
}

// hash is FNV-1a, used only as a cache key.
func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
