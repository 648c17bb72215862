// Package export builds the JSON report payload consumed by the
// downstream report renderer and writes it to disk.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"xscraper/pkg/collector"
	"xscraper/pkg/models"
)

// TopTweet is one high-engagement post in the report.
type TopTweet struct {
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	Likes     int    `json:"likes"`
	Retweets  int    `json:"retweets"`
	Replies   int    `json:"replies"`
	URL       string `json:"url"`
}

// AccountMetrics aggregates one account's collected posts.
type AccountMetrics struct {
	Total              int `json:"total"`
	Originals          int `json:"originals"`
	Replies            int `json:"replies"`
	Retweets           int `json:"retweets"`
	Likes              int `json:"likes"`
	EngagementRetweets int `json:"engagementRetweets"`
	EngagementReplies  int `json:"engagementReplies"`
}

// AccountReport is one account's section of the payload. WindowStart
// and WindowEnd are millisecond epochs, null when nothing was
// collected.
type AccountReport struct {
	Username    string         `json:"username"`
	WindowStart *int64         `json:"windowStart"`
	WindowEnd   *int64         `json:"windowEnd"`
	Metrics     AccountMetrics `json:"metrics"`
	AISummary   string         `json:"aiSummary"`
	TopTweets   []TopTweet     `json:"topTweets"`
}

// Overview aggregates across all account sections.
type Overview struct {
	Accounts      int    `json:"accounts"`
	TotalTweets   int    `json:"totalTweets"`
	TotalLikes    int    `json:"totalLikes"`
	TotalRetweets int    `json:"totalRetweets"`
	TotalReplies  int    `json:"totalReplies"`
	EarliestStart *int64 `json:"earliestStart"`
	LatestEnd     *int64 `json:"latestEnd"`
}

// Report is the full payload.
type Report struct {
	GeneratedAt int64           `json:"generatedAt"`
	WindowHours int             `json:"windowHours"`
	Overview    Overview        `json:"overview"`
	Accounts    []AccountReport `json:"accounts"`
	Stats       collector.Stats `json:"runStats"`
}

// BuildAccount aggregates one account's posts into a report section.
// topN bounds the top-tweet list; zero means 5.
func BuildAccount(handle string, posts []models.Post, topN int) AccountReport {
	if topN <= 0 {
		topN = 5
	}

	report := AccountReport{
		Username:  handle,
		TopTweets: []TopTweet{},
	}

	var oldest, newest int64
	for _, post := range posts {
		report.Metrics.Total++
		switch {
		case post.IsRetweet:
			report.Metrics.Retweets++
		case post.IsReply:
			report.Metrics.Replies++
		default:
			report.Metrics.Originals++
		}
		report.Metrics.Likes += post.Likes
		report.Metrics.EngagementRetweets += post.Retweets
		report.Metrics.EngagementReplies += post.Replies

		if oldest == 0 || post.TimestampMs < oldest {
			oldest = post.TimestampMs
		}
		if post.TimestampMs > newest {
			newest = post.TimestampMs
		}
	}
	if oldest > 0 {
		report.WindowStart = &oldest
		report.WindowEnd = &newest
	}

	// retweets carry someone else's engagement numbers
	candidates := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		if !post.IsRetweet {
			candidates = append(candidates, post)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return engagement(candidates[i]) > engagement(candidates[j])
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	for _, post := range candidates {
		report.TopTweets = append(report.TopTweets, TopTweet{
			Timestamp: post.TimestampMs,
			Text:      post.Text,
			Likes:     post.Likes,
			Retweets:  post.Retweets,
			Replies:   post.Replies,
			URL:       post.Permalink,
		})
	}

	return report
}

// BuildReport assembles account sections into the full payload.
func BuildReport(windowHours int, stats collector.Stats, accounts ...AccountReport) Report {
	report := Report{
		GeneratedAt: time.Now().UnixMilli(),
		WindowHours: windowHours,
		Accounts:    accounts,
		Stats:       stats,
	}
	if report.Accounts == nil {
		report.Accounts = []AccountReport{}
	}

	report.Overview.Accounts = len(accounts)
	for _, account := range accounts {
		report.Overview.TotalTweets += account.Metrics.Total
		report.Overview.TotalLikes += account.Metrics.Likes
		report.Overview.TotalRetweets += account.Metrics.EngagementRetweets
		report.Overview.TotalReplies += account.Metrics.EngagementReplies

		if account.WindowStart != nil {
			if report.Overview.EarliestStart == nil || *account.WindowStart < *report.Overview.EarliestStart {
				report.Overview.EarliestStart = account.WindowStart
			}
		}
		if account.WindowEnd != nil {
			if report.Overview.LatestEnd == nil || *account.WindowEnd > *report.Overview.LatestEnd {
				report.Overview.LatestEnd = account.WindowEnd
			}
		}
	}

	return report
}

// WriteJSON writes the report to path, creating parent directories.
func WriteJSON(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return os.Rename(tempPath, path)
}

func engagement(post models.Post) int {
	return post.Likes + post.Retweets + post.Replies
}
