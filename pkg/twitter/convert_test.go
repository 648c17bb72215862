package twitter

import (
	"errors"
	"testing"

	twitterscraper "github.com/imperatrona/twitter-scraper"

	errs "xscraper/pkg/errors"
)

func TestRawFromTweet(t *testing.T) {
	tweet := &twitterscraper.Tweet{
		ID:           "1234567890",
		Text:         "markets closed green",
		Username:     "trader",
		Timestamp:    1700000000,
		IsReply:      true,
		Likes:        12,
		Retweets:     3,
		Replies:      1,
		Hashtags:     []string{"stocks"},
		URLs:         []string{"https://example.com/chart"},
		PermanentURL: "https://x.com/trader/status/1234567890",
	}
	tweet.Photos = []twitterscraper.Photo{{ID: "p1", URL: "https://pbs.example/p1.jpg"}}

	raw := rawFromTweet(tweet)

	if raw.ID != "1234567890" || raw.Username != "trader" {
		t.Errorf("identity fields not mapped: %+v", raw)
	}
	if raw.Timestamp != int64(1700000000) {
		t.Errorf("timestamp should pass through unmodified, got %v", raw.Timestamp)
	}
	if !raw.IsReply || raw.IsRetweet {
		t.Error("flags not mapped")
	}
	if len(raw.Images) != 1 || raw.Images[0] != "https://pbs.example/p1.jpg" {
		t.Errorf("photos not mapped: %v", raw.Images)
	}
	if raw.Permalink == "" || len(raw.Hashtags) != 1 {
		t.Error("permalink or hashtags not mapped")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrorType
	}{
		{"throttle status", errors.New("response status 429 Too Many Requests"), errs.ErrorTypeRateLimit},
		{"rate limit text", errors.New("rate limit exceeded"), errs.ErrorTypeRateLimit},
		{"bad password", errors.New("wrong password"), errs.ErrorTypeAuth},
		{"transport", errors.New("connection reset by peer"), errs.ErrorTypeNetwork},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := classifyError("op", test.err)
			if errs.TypeOf(got) != test.want {
				t.Errorf("got %s, want %s", errs.TypeOf(got), test.want)
			}
		})
	}
}
