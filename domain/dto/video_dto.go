package dto

import "io"

// UploadVideoRequest carries a validated multipart upload to the video usecase.
type UploadVideoRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Title       string
	Description string
}
