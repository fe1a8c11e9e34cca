package dto

import "crosspost/domain/model"

// PlatformRequest is one platform entry of a publish request.
type PlatformRequest struct {
	Platform    string   `json:"platform"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// CreatePostRequest is the body of POST /api/posts/create.
type CreatePostRequest struct {
	VideoID   string            `json:"video_id"`
	Platforms []PlatformRequest `json:"platforms"`
}

type CreatePostResponse struct {
	Success bool          `json:"success"`
	Posts   []*model.Post `json:"posts"`
}
