package collector

import (
	errs "xscraper/pkg/errors"
	"xscraper/pkg/models"
)

// ConvertRaw maps a raw source record to a canonical Post. A missing id or
// an unparseable timestamp makes the record malformed; the caller drops it
// with a warning and keeps collecting.
func ConvertRaw(raw models.RawPost) (models.Post, error) {
	if raw.ID == "" {
		return models.Post{}, errs.New(errs.ErrorTypeRecord, "raw post has no id")
	}

	ts, ok := NormalizeTimestamp(raw.Timestamp)
	if !ok {
		return models.Post{}, errs.New(errs.ErrorTypeRecord, "raw post has unusable timestamp")
	}

	return models.Post{
		ID:              raw.ID,
		Text:            raw.Text,
		AuthorHandle:    raw.Username,
		TimestampMs:     ts,
		IsReply:         raw.IsReply,
		IsRetweet:       raw.IsRetweet,
		Likes:           clampCount(raw.Likes),
		Retweets:        clampCount(raw.Retweets),
		Replies:         clampCount(raw.Replies),
		Images:          raw.Images,
		Videos:          raw.Videos,
		URLs:            raw.URLs,
		Hashtags:        raw.Hashtags,
		Permalink:       raw.Permalink,
		QuotedPostID:    raw.QuotedID,
		InReplyToPostID: raw.InReplyToID,
	}, nil
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
