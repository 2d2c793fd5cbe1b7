package posts

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const (
	segmentSeparator = "|||"
	linkSeparator    = "|"
)

// Fingerprint returns the hex SHA-256 digest of the post's text and image-link set.
// Timestamp and link order do not contribute.
func Fingerprint(post Post) string {
	sum := sha256.Sum256([]byte(canonicalContent(post)))
	return hex.EncodeToString(sum[:])
}

func canonicalContent(post Post) string {
	links := sortedUniqueLinks(post.ImageLinks)

	var b strings.Builder
	b.WriteString("text:")
	b.WriteString(post.Text)
	b.WriteString(segmentSeparator)
	b.WriteString("images:")
	b.WriteString(strings.Join(links, linkSeparator))
	return b.String()
}

func sortedUniqueLinks(links []string) []string {
	if len(links) == 0 {
		return nil
	}

	sorted := append([]string(nil), links...)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted))
	for _, link := range sorted {
		if len(out) > 0 && out[len(out)-1] == link {
			continue
		}
		out = append(out, link)
	}
	return out
}
