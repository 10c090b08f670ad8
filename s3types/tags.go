package s3types

import (
	"net/url"
	"sort"
	"strings"
)

// EncodeTagging renders tags in the query form used by the x-amz-tagging
// header, preserving the caller's order.
func EncodeTagging(tags []Tag) string {
	pairs := make([]string, 0, len(tags))
	for _, t := range tags {
		pairs = append(pairs, url.QueryEscape(t.Key)+"="+url.QueryEscape(t.Value))
	}
	return strings.Join(pairs, "&")
}

// TagsToMap converts a tag slice to a map. Later duplicates win.
func TagsToMap(tags []Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

// TagsFromMap converts a map to a tag slice sorted by key.
func TagsFromMap(m map[string]string) []Tag {
	tags := make([]Tag, 0, len(m))
	for k, v := range m {
		tags = append(tags, Tag{Key: k, Value: v})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}
