package model

import "time"

type PostStatus string

const (
	PostStatusPending    PostStatus = "pending"
	PostStatusUploading  PostStatus = "uploading"
	PostStatusProcessing PostStatus = "processing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s PostStatus) Terminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed
}

func (s PostStatus) rank() int {
	switch s {
	case PostStatusPending:
		return 0
	case PostStatusUploading:
		return 1
	case PostStatusProcessing:
		return 2
	case PostStatusPublished, PostStatusFailed:
		return 3
	}
	return -1
}

// CanTransition enforces pending -> (uploading|processing)* -> published|failed.
func (s PostStatus) CanTransition(to PostStatus) bool {
	if s.Terminal() || to.rank() < 0 {
		return false
	}
	if to.Terminal() {
		return true
	}
	return to.rank() >= s.rank() && to != PostStatusPending
}

// Post is one per-platform publish attempt for a video.
type Post struct {
	ID             string     `json:"id"`
	VideoID        string     `json:"video_id"`
	UserID         string     `json:"user_id"`
	Platform       Platform   `json:"platform"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Tags           []string   `json:"tags"`
	Status         PostStatus `json:"status"`
	PlatformPostID *string    `json:"platform_post_id,omitempty"`
	PlatformURL    *string    `json:"platform_url,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PostFilter narrows a history listing. Zero values are ignored.
type PostFilter struct {
	VideoID  string
	Platform Platform
}

// PostAudit is an append-only record of every status a post passed through.
type PostAudit struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	PostID       string     `json:"post_id" gorm:"size:64;index"`
	UserID       string     `json:"user_id" gorm:"size:128;index"`
	Platform     Platform   `json:"platform" gorm:"size:32"`
	Status       PostStatus `json:"status" gorm:"size:32"`
	ErrorMessage *string    `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime;index"`
}

func (PostAudit) TableName() string { return "post_audits" }

// PostEvent is broadcast whenever a post changes status.
type PostEvent struct {
	Type         string     `json:"type"`
	PostID       string     `json:"post_id"`
	VideoID      string     `json:"video_id"`
	UserID       string     `json:"user_id"`
	Platform     Platform   `json:"platform"`
	Status       PostStatus `json:"status"`
	PlatformURL  *string    `json:"platform_url,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

func NewPostEvent(p *Post) PostEvent {
	return PostEvent{
		Type:         "post_status",
		PostID:       p.ID,
		VideoID:      p.VideoID,
		UserID:       p.UserID,
		Platform:     p.Platform,
		Status:       p.Status,
		PlatformURL:  p.PlatformURL,
		ErrorMessage: p.ErrorMessage,
		OccurredAt:   time.Now().UTC(),
	}
}
