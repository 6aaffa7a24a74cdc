package signin

import (
	"encoding/json"
	"math/rand"
	"os"
)

var defaultReplies = []string{
	"互评",
	"支持楼主",
	"说得很有道理",
	"学到了",
	"赞同",
}

// ReplyTemplates feeds the reply task with something to post. Templates come
// from an optional JSON file {"replies": [...]}; anything missing or broken
// falls back to the built-in list.
type ReplyTemplates struct {
	replies []string
}

func LoadReplyTemplates(path string) *ReplyTemplates {
	t := &ReplyTemplates{replies: defaultReplies}
	if path == "" {
		return t
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	var file struct {
		Replies []string `json:"replies"`
	}
	if err := json.Unmarshal(raw, &file); err != nil || len(file.Replies) == 0 {
		return t
	}
	t.replies = file.Replies
	return t
}

func (t *ReplyTemplates) Random() string {
	return t.replies[rand.Intn(len(t.replies))]
}
