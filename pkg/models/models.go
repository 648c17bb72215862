package models

// Post is the canonical, immutable representation of one collected post.
// A Post with a given ID is constructed once and never mutated;
// re-encountering the same ID downstream is a no-op.
type Post struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	AuthorHandle string   `json:"authorHandle"`
	TimestampMs  int64    `json:"timestampMs"`
	IsReply      bool     `json:"isReply"`
	IsRetweet    bool     `json:"isRetweet"`
	Likes        int      `json:"likes"`
	Retweets     int      `json:"retweets"`
	Replies      int      `json:"replies"`
	Images       []string `json:"images,omitempty"`
	Videos       []string `json:"videos,omitempty"`
	URLs         []string `json:"urls,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`
	Permalink    string   `json:"permalink,omitempty"`

	QuotedPostID    string `json:"quotedPostId,omitempty"`
	InReplyToPostID string `json:"inReplyToPostId,omitempty"`
}

// RawPost is the loose record both collectors emit before normalization.
// Timestamp carries whatever shape the source produced: seconds or
// milliseconds epoch, a numeric string, or a time.Time.
type RawPost struct {
	ID        string
	Text      string
	Username  string
	Timestamp interface{}
	IsReply   bool
	IsRetweet bool
	Likes     int
	Retweets  int
	Replies   int
	Images    []string
	Videos    []string
	URLs      []string
	Hashtags  []string
	Permalink string

	QuotedID    string
	InReplyToID string
}
