package model

import "time"

// Memory is the narrow projection of a captured moment that milestones read.
// Memories are created and edited elsewhere; this service only reads them and
// flips IsMilestone.
type Memory struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	LocationName *string   `json:"location_name"`
	LocationLat  *float64  `json:"location_lat"`
	LocationLng  *float64  `json:"location_lng"`
	IsMilestone  bool      `json:"is_milestone"`
	IsPublic     bool      `json:"is_public"`
	CreatedAt    time.Time `json:"created_at"`
	Media        *Media    `json:"media_file"`
}

// Media is the single attached file of a memory, as hosted by the media CDN.
type Media struct {
	SecureURL    string `json:"secure_url"`
	ResourceType string `json:"resource_type"` // image, video, raw
}
