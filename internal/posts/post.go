package posts

import (
	"encoding/json"
	"time"
)

// Post is one scraped social-media post.
type Post struct {
	Text       string   `json:"text"`
	ImageLinks []string `json:"image_links"`
	Timestamp  *string  `json:"timestamp,omitempty"`
}

// Collection is one scrape snapshot of a page.
type Collection struct {
	URL       string     `json:"url,omitempty"`
	ScrapedAt *time.Time `json:"scraped_at,omitempty"`
	Posts     []Post     `json:"posts"`
}

// rawPost accepts the scraper's historical img_links field alongside image_links.
type rawPost struct {
	Text       *string  `json:"text"`
	ImageLinks []string `json:"image_links"`
	ImgLinks   []string `json:"img_links"`
	Timestamp  *string  `json:"timestamp"`
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var raw rawPost
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	links := raw.ImageLinks
	if links == nil {
		links = raw.ImgLinks
	}

	*p = Post{
		ImageLinks: links,
		Timestamp:  raw.Timestamp,
	}
	if raw.Text != nil {
		p.Text = *raw.Text
	}
	return nil
}

// Clone returns a deep copy of the post.
func (p Post) Clone() Post {
	out := Post{Text: p.Text}
	if p.ImageLinks != nil {
		out.ImageLinks = append([]string(nil), p.ImageLinks...)
	}
	if p.Timestamp != nil {
		ts := *p.Timestamp
		out.Timestamp = &ts
	}
	return out
}
