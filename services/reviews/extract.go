package reviews

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Stats is what a review page tells about a business
type Stats struct {
	ReviewCount int
	Rating      float64
}

var (
	countPattern  = regexp.MustCompile(`(?i)([\d][\d,.\s]*)\s+(?:google\s+)?reviews?\b`)
	ratingPattern = regexp.MustCompile(`(?i)\b([0-5](?:[.,]\d)?)\s*(?:stars?|★|out of 5|/\s*5)`)
)

type aggregateRating struct {
	RatingValue json.Number `json:"ratingValue"`
	ReviewCount json.Number `json:"reviewCount"`
	RatingCount json.Number `json:"ratingCount"`
}

// ExtractStats is a best effort read of review count and rating. It tries
// structured data first and falls back to the visible text. ok is false when
// no review count was found.
func ExtractStats(html string) (stats Stats, ok bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Stats{}, false, err
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, el *goquery.Selection) bool {
		if found, hit := fromJSONLD(el.Text()); hit {
			stats, ok = found, true
			return false
		}
		return true
	})
	if ok {
		return stats, true, nil
	}

	if count, hit := itemprop(doc, "reviewCount"); hit {
		stats.ReviewCount = int(count)
		ok = true
		if rating, hit := itemprop(doc, "ratingValue"); hit {
			stats.Rating = rating
		}
		return stats, ok, nil
	}

	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Text()), " ")

	if match := countPattern.FindStringSubmatch(text); match != nil {
		if count, hit := parseCount(match[1]); hit {
			stats.ReviewCount = count
			ok = true
		}
	}
	if match := ratingPattern.FindStringSubmatch(text); match != nil {
		if rating, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64); err == nil {
			stats.Rating = rating
		}
	}
	return stats, ok, nil
}

func fromJSONLD(raw string) (Stats, bool) {
	var documents []map[string]json.RawMessage
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &documents); err != nil {
			return Stats{}, false
		}
	} else {
		var single map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
			return Stats{}, false
		}
		documents = append(documents, single)
	}

	for _, document := range documents {
		payload, found := document["aggregateRating"]
		if !found {
			continue
		}
		var rating aggregateRating
		if err := json.Unmarshal(payload, &rating); err != nil {
			continue
		}
		countValue := rating.ReviewCount
		if countValue == "" {
			countValue = rating.RatingCount
		}
		count, err := countValue.Int64()
		if err != nil {
			continue
		}
		stats := Stats{ReviewCount: int(count)}
		if value, err := rating.RatingValue.Float64(); err == nil {
			stats.Rating = value
		}
		return stats, true
	}
	return Stats{}, false
}

func itemprop(doc *goquery.Document, name string) (float64, bool) {
	selection := doc.Find(`[itemprop="` + name + `"]`).First()
	if selection.Length() == 0 {
		return 0, false
	}
	value, exists := selection.Attr("content")
	if !exists {
		value = selection.Text()
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(value), ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseCount(raw string) (int, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0, false
	}
	count, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return count, true
}
