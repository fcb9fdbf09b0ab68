package models

import "time"

type Document struct {
	ID         string
	Filename   string
	Title      string
	DocType    string
	RawContent string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type DocumentChunk struct {
	ID         string
	DocID      string
	ChunkIndex int
	Text       string
	CreatedAt  time.Time
}

type QueryRecord struct {
	ID           string
	QueryText    string
	Response     string
	Source       string
	ResponseTime float64
	CreatedAt    time.Time
}
