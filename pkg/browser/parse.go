package browser

import (
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "xscraper/pkg/errors"
	"xscraper/pkg/models"
)

// ParsePosts extracts raw post records from a rendered timeline page.
// Elements missing an id or timestamp are skipped; the caller decides
// what to do with records that fail later normalization.
func ParsePosts(html string) ([]models.RawPost, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFallback, "failed to parse page", err)
	}

	var posts []models.RawPost
	doc.Find(`article[data-testid="tweet"]`).Each(func(_ int, article *goquery.Selection) {
		post, ok := parseArticle(article)
		if ok {
			posts = append(posts, post)
		}
	})
	return posts, nil
}

func parseArticle(article *goquery.Selection) (models.RawPost, bool) {
	var post models.RawPost

	// the permalink anchor wraps the timestamp and carries the id
	link := article.Find(`a[href*="/status/"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("time").Length() > 0
	}).First()
	href, _ := link.Attr("href")
	username, id := splitStatusPath(href)
	if id == "" {
		return post, false
	}
	post.ID = id
	post.Username = username
	post.Permalink = "https://x.com" + href

	datetime, ok := link.Find("time").Attr("datetime")
	if !ok || datetime == "" {
		return post, false
	}
	post.Timestamp = datetime

	post.Text = strings.TrimSpace(article.Find(`div[data-testid="tweetText"]`).First().Text())

	context := article.Find(`span[data-testid="socialContext"]`).Text()
	post.IsRetweet = strings.Contains(strings.ToLower(context), "repost")
	post.IsReply = strings.Contains(article.Text(), "Replying to")

	post.Replies = parseCount(article.Find(`button[data-testid="reply"]`).Text())
	post.Retweets = parseCount(article.Find(`button[data-testid="retweet"]`).Text())
	post.Likes = parseCount(article.Find(`button[data-testid="like"]`).Text())

	article.Find(`div[data-testid="tweetText"] a[href^="http"]`).Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			post.URLs = append(post.URLs, href)
		}
	})
	article.Find(`a[href^="/hashtag/"]`).Each(func(_ int, a *goquery.Selection) {
		tag := strings.TrimPrefix(strings.TrimSpace(a.Text()), "#")
		if tag != "" {
			post.Hashtags = append(post.Hashtags, tag)
		}
	})
	article.Find(`div[data-testid="tweetPhoto"] img`).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok {
			post.Images = append(post.Images, src)
		}
	})
	article.Find(`video source`).Each(func(_ int, v *goquery.Selection) {
		if src, ok := v.Attr("src"); ok {
			post.Videos = append(post.Videos, src)
		}
	})

	return post, true
}

// splitStatusPath pulls the author handle and post id out of a
// "/<user>/status/<id>" path, dropping any trailing segments.
func splitStatusPath(href string) (username, id string) {
	parts := strings.Split(strings.TrimPrefix(href, "/"), "/")
	for i, part := range parts {
		if part == "status" && i > 0 && i+1 < len(parts) {
			return parts[0], parts[i+1]
		}
	}
	return "", ""
}

// parseCount converts coarse engagement text ("1,204", "3.4K", "2M")
// to an integer, returning 0 for anything unparseable.
func parseCount(text string) int {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "K"):
		multiplier = 1_000
		text = strings.TrimSuffix(text, "K")
	case strings.HasSuffix(text, "M"):
		multiplier = 1_000_000
		text = strings.TrimSuffix(text, "M")
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	n := int(math.Round(value * multiplier))
	if n < 0 {
		return 0
	}
	return n
}
