package twitter

import (
	twitterscraper "github.com/imperatrona/twitter-scraper"

	"xscraper/pkg/models"
)

// rawFromTweet maps a library tweet onto the loose RawPost record. The
// library reports seconds-epoch timestamps; normalization downstream
// promotes them to milliseconds.
func rawFromTweet(tweet *twitterscraper.Tweet) models.RawPost {
	raw := models.RawPost{
		ID:          tweet.ID,
		Text:        tweet.Text,
		Username:    tweet.Username,
		Timestamp:   tweet.Timestamp,
		IsReply:     tweet.IsReply,
		IsRetweet:   tweet.IsRetweet,
		Likes:       tweet.Likes,
		Retweets:    tweet.Retweets,
		Replies:     tweet.Replies,
		URLs:        tweet.URLs,
		Hashtags:    tweet.Hashtags,
		Permalink:   tweet.PermanentURL,
		QuotedID:    tweet.QuotedStatusID,
		InReplyToID: tweet.InReplyToStatusID,
	}

	for _, photo := range tweet.Photos {
		raw.Images = append(raw.Images, photo.URL)
	}
	for _, video := range tweet.Videos {
		raw.Videos = append(raw.Videos, video.URL)
	}

	return raw
}
