package posts

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// MalformedInputError reports a post collection that is not a list of posts.
// It is distinct from a well-formed collection that yields no new posts.
type MalformedInputError struct {
	Side   string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Side == "" {
		return fmt.Sprintf("malformed post collection: %s", e.Reason)
	}
	return fmt.Sprintf("malformed %s post collection: %s", e.Side, e.Reason)
}

// FindNewPosts returns deep copies of the posts in newPosts whose content
// fingerprint does not appear in oldPosts, preserving newPosts order.
func FindNewPosts(oldPosts, newPosts []Post) []Post {
	seen := make(map[string]struct{}, len(oldPosts))
	for _, post := range oldPosts {
		seen[Fingerprint(post)] = struct{}{}
	}

	fresh := make([]Post, 0)
	for _, post := range newPosts {
		if _, exists := seen[Fingerprint(post)]; exists {
			continue
		}
		fresh = append(fresh, post.Clone())
	}
	return fresh
}

// FindNewPostsJSON decodes both snapshots with ParseCollection and diffs them.
func FindNewPostsJSON(oldRaw, newRaw json.RawMessage, logger zerolog.Logger) ([]Post, error) {
	oldPosts, err := ParseSnapshot(oldRaw, "old", logger)
	if err != nil {
		return nil, err
	}
	newPosts, err := ParseSnapshot(newRaw, "new", logger)
	if err != nil {
		return nil, err
	}
	return FindNewPosts(oldPosts, newPosts), nil
}

// ParseCollection accepts either a snapshot object with a "posts" list or a bare
// list of posts. Items that are not post objects are skipped with a warning.
func ParseCollection(raw json.RawMessage, logger zerolog.Logger) ([]Post, error) {
	return parseCollection(raw, "", logger)
}

// ParseSnapshot is ParseCollection with side ("old" or "new") recorded on
// errors and warnings.
func ParseSnapshot(raw json.RawMessage, side string, logger zerolog.Logger) ([]Post, error) {
	return parseCollection(raw, side, logger)
}

func parseCollection(raw json.RawMessage, side string, logger zerolog.Logger) ([]Post, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &MalformedInputError{Side: side, Reason: "input is empty"}
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &MalformedInputError{Side: side, Reason: err.Error()}
		}
	case '{':
		var envelope struct {
			Posts json.RawMessage `json:"posts"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, &MalformedInputError{Side: side, Reason: err.Error()}
		}
		postsRaw := bytes.TrimSpace(envelope.Posts)
		if len(postsRaw) == 0 || postsRaw[0] != '[' {
			return nil, &MalformedInputError{Side: side, Reason: `"posts" must be a list`}
		}
		if err := json.Unmarshal(postsRaw, &items); err != nil {
			return nil, &MalformedInputError{Side: side, Reason: err.Error()}
		}
	default:
		return nil, &MalformedInputError{Side: side, Reason: "expected an object with a posts list or a list of posts"}
	}

	out := make([]Post, 0, len(items))
	for i, item := range items {
		post, err := decodePost(item)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("side", side).
				Int("index", i).
				Msg("skipping malformed post")
			continue
		}
		out = append(out, post)
	}
	return out, nil
}

func decodePost(item json.RawMessage) (Post, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Post{}, fmt.Errorf("post is not an object")
	}
	var post Post
	if err := json.Unmarshal(trimmed, &post); err != nil {
		return Post{}, fmt.Errorf("decode post: %w", err)
	}
	return post, nil
}
