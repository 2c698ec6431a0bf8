// Package indexer orchestrates a full or incremental index run: it
// walks the codebase, detects changes against the last snapshot,
// chunks and embeds changed files, upserts/deletes vector-store
// points through the pipeline coordinator, and checkpoints progress
// so an interrupted run can resume.
package indexer

import "github.com/ziadkadry99/codesearch/internal/gitmeta"

// ChunkItem is one chunk queued for embedding, carrying everything the
// pipeline needs to build a vectordb.UpsertItem once its embedding is
// computed.
type ChunkItem struct {
	RelativePath string
	Content      string
	StartLine    int
	EndLine      int
	ChunkIndex   int
	Symbol       string
	Language     string
	IsDoc        bool
	ImportPaths  []string
	ContentHash  string
	Git          *gitmeta.Info
}

// RunStatus is the terminal status of an index run.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusPartial   RunStatus = "partial"
	StatusFailed    RunStatus = "failed"
)

// RunResult summarizes one index run.
type RunResult struct {
	FilesScanned  int
	FilesIndexed  int
	ChunksCreated int
	Added         int
	Modified      int
	Deleted       int
	Status        RunStatus
	Errors        []string
}

// ProgressEvent describes one step of a run, delivered to ProgressFunc.
type ProgressEvent struct {
	Phase          string // "scanning" | "embedding" | "deleting" | "checkpoint"
	FilesProcessed int
	FilesTotal     int
}

// ProgressFunc receives progress events during a run. May be nil.
type ProgressFunc func(ProgressEvent)
