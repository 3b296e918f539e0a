package model

type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Category    Category `json:"category"`
	ContentHash string   `json:"content_hash"`
	SourceKey   string   `json:"source_key"`
	ChunkCount  int      `json:"chunk_count"`
	Ctime       int64    `json:"ctime"`
	Mtime       int64    `json:"mtime"`
}
