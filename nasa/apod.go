package nasa

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidDate is returned by APODForDate for strings that are not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD")

// APOD is one astronomy picture of the day. URL points at the displayable
// image (the video thumbnail for video entries); RawURL is the unmodified
// upstream url field.
type APOD struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	MediaType   string `json:"media_type"`
	URL         string `json:"url"`
	HDURL       string `json:"hdurl"`
	Copyright   string `json:"copyright"`
	RawURL      string `json:"raw_url"`
}

type apodResponse struct {
	Date         string `json:"date"`
	Title        string `json:"title"`
	Explanation  string `json:"explanation"`
	MediaType    string `json:"media_type"`
	URL          string `json:"url"`
	HDURL        string `json:"hdurl"`
	Copyright    string `json:"copyright"`
	ThumbnailURL string `json:"thumbnail_url"`
	Error        *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r apodResponse) item() APOD {
	display := r.URL
	if r.ThumbnailURL != "" {
		display = r.ThumbnailURL
	}
	return APOD{
		Date:        r.Date,
		Title:       r.Title,
		Explanation: r.Explanation,
		MediaType:   r.MediaType,
		URL:         display,
		HDURL:       r.HDURL,
		Copyright:   r.Copyright,
		RawURL:      r.URL,
	}
}

func (c *Client) fetchAPOD(ctx context.Context, date string) (apodResponse, error) {
	var resp apodResponse
	err := c.getJSON(ctx, "/planetary/apod", map[string]string{
		"date":   date,
		"thumbs": "true",
	}, &resp)
	return resp, err
}

// APODForDate fetches the picture for a specific date. An unparseable date is
// surfaced as ErrInvalidDate; an upstream failure degrades to an empty item,
// which the dashboard renders as "no picture".
func (c *Client) APODForDate(ctx context.Context, dateStr string) (APOD, error) {
	if _, err := time.Parse("2006-01-02", dateStr); err != nil {
		return APOD{}, ErrInvalidDate
	}
	resp, err := c.fetchAPOD(ctx, dateStr)
	if err != nil || resp.Error != nil {
		return APOD{}, nil
	}
	return resp.item(), nil
}

// APODLookback walks backwards from the given day until it finds a published
// picture, up to maxDays back. A missing day (404) keeps the walk going; a
// 429 stops it immediately since every further request would burn quota for
// nothing, as does an API-level error object. Returns an empty item when
// nothing is found.
func (c *Client) APODLookback(ctx context.Context, from time.Time, maxDays int) APOD {
	from = from.UTC()
	for d := 0; d <= maxDays; d++ {
		dateStr := from.AddDate(0, 0, -d).Format("2006-01-02")
		resp, err := c.fetchAPOD(ctx, dateStr)
		if err != nil {
			if IsRateLimited(err) {
				break
			}
			continue
		}
		if resp.Error != nil {
			break
		}
		return resp.item()
	}
	return APOD{}
}
