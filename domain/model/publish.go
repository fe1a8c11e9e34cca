package model

// PublishMeta is the per-platform metadata a user supplies at dispatch time.
type PublishMeta struct {
	Title       string
	Description string
	Tags        []string
}

// StatusReporter lets a publisher advance its post through intermediate states.
type StatusReporter func(status PostStatus)

// PublishInput is everything a platform publisher needs for one attempt.
type PublishInput struct {
	Connection *Connection
	Video      *Video
	Meta       PublishMeta
	SignedURL  string
	Report     StatusReporter
}

// Progress calls Report when one is set.
func (in PublishInput) Progress(status PostStatus) {
	if in.Report != nil {
		in.Report(status)
	}
}

// PublishResult identifies the published item on the vendor side.
type PublishResult struct {
	ID  string
	URL string
}
