package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/collector"
	"xscraper/pkg/models"
)

func post(id string, ts int64, likes, retweets, replies int) models.Post {
	return models.Post{
		ID:          id,
		Text:        "post " + id,
		AuthorHandle: "finhub",
		TimestampMs: ts,
		Likes:       likes,
		Retweets:    retweets,
		Replies:     replies,
		Permalink:   "https://x.com/finhub/status/" + id,
	}
}

func TestBuildAccount(t *testing.T) {
	base := int64(1_700_000_000_000)
	reply := post("2", base+1000, 5, 1, 0)
	reply.IsReply = true
	retweet := post("3", base+2000, 900, 400, 100)
	retweet.IsRetweet = true

	posts := []models.Post{
		post("1", base, 10, 2, 3),
		reply,
		retweet,
		post("4", base+3000, 50, 20, 7),
	}

	account := BuildAccount("finhub", posts, 2)

	assert.Equal(t, "finhub", account.Username)
	assert.Equal(t, 4, account.Metrics.Total)
	assert.Equal(t, 2, account.Metrics.Originals)
	assert.Equal(t, 1, account.Metrics.Replies)
	assert.Equal(t, 1, account.Metrics.Retweets)
	assert.Equal(t, 965, account.Metrics.Likes)
	assert.Equal(t, 423, account.Metrics.EngagementRetweets)
	assert.Equal(t, 110, account.Metrics.EngagementReplies)

	require.NotNil(t, account.WindowStart)
	assert.Equal(t, base, *account.WindowStart)
	assert.Equal(t, base+3000, *account.WindowEnd)

	// retweets are excluded from top tweets despite high engagement
	require.Len(t, account.TopTweets, 2)
	assert.Equal(t, "post 4", account.TopTweets[0].Text)
	assert.Equal(t, "post 1", account.TopTweets[1].Text)
}

func TestBuildAccountEmpty(t *testing.T) {
	account := BuildAccount("finhub", nil, 0)

	assert.Zero(t, account.Metrics.Total)
	assert.Nil(t, account.WindowStart)
	assert.Nil(t, account.WindowEnd)
	assert.NotNil(t, account.TopTweets, "renderer expects a list, not null")
}

func TestBuildReportOverview(t *testing.T) {
	base := int64(1_700_000_000_000)
	a := BuildAccount("finhub", []models.Post{post("1", base, 10, 2, 3)}, 0)
	b := BuildAccount("econwatch", []models.Post{post("2", base+5000, 7, 1, 1)}, 0)

	report := BuildReport(24, collector.Stats{RunID: "run-1"}, a, b)

	assert.Equal(t, 24, report.WindowHours)
	assert.Equal(t, 2, report.Overview.Accounts)
	assert.Equal(t, 2, report.Overview.TotalTweets)
	assert.Equal(t, 17, report.Overview.TotalLikes)
	require.NotNil(t, report.Overview.EarliestStart)
	assert.Equal(t, base, *report.Overview.EarliestStart)
	assert.Equal(t, base+5000, *report.Overview.LatestEnd)
	assert.NotZero(t, report.GeneratedAt)
}

func TestWriteJSONRoundTrip(t *testing.T) {
	base := int64(1_700_000_000_000)
	account := BuildAccount("finhub", []models.Post{post("1", base, 10, 2, 3)}, 0)
	report := BuildReport(24, collector.Stats{RunID: "run-1"}, account)

	path := filepath.Join(t.TempDir(), "out", "report.json")
	require.NoError(t, WriteJSON(path, report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "overview")
	assert.Contains(t, decoded, "accounts")
	assert.Contains(t, decoded, "windowHours")

	accounts := decoded["accounts"].([]interface{})
	first := accounts[0].(map[string]interface{})
	metrics := first["metrics"].(map[string]interface{})
	assert.Equal(t, float64(1), metrics["total"])
	assert.Contains(t, metrics, "engagementRetweets")
}
