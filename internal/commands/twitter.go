package commands

import (
	"context"
	"regexp"
	"strings"

	"github.com/keshon/server-cat/internal/handler"
)

var statusLinkRe = regexp.MustCompile(`https?://(?:www\.|mobile\.)?(?:twitter|x)\.com/(\w+)/status/(\d+)`)

// FixTwitterLinks rewrites every status link in content to its fxtwitter
// equivalent, in order of appearance and without duplicates.
func FixTwitterLinks(content string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range statusLinkRe.FindAllStringSubmatch(content, -1) {
		link := "https://fxtwitter.com/" + m[1] + "/status/" + m[2]
		if seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
	}
	return out
}

func twitter(env Env) *handler.Handler {
	return &handler.Handler{
		Tag:      "twitter",
		Name:     "Twitter embeds",
		Category: handler.Integration,
		Pattern:  statusLinkRe,
		Run: func(ctx context.Context, req *handler.Request) error {
			links := FixTwitterLinks(req.Message.Content)
			if len(links) == 0 {
				return nil
			}
			return req.Reply.Reply(ctx, expand(env.Replies.Twitter, "links", strings.Join(links, " ")))
		},
	}
}
