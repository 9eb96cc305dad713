package domain

import "time"

// Artifact describes a fetched document stored locally.
type Artifact struct {
	Name        string    `json:"name"`
	ResourceKey string    `json:"resource_key,omitempty"`
	Size        int64     `json:"size"`
	Digest      string    `json:"digest,omitempty"`
	MIMEType    string    `json:"mime_type,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	FetchCount  int       `json:"fetch_count,omitempty"`
}
