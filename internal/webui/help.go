// ABOUTME: Classroom help pages rendered from embedded Markdown with goldmark
// ABOUTME: Served as a modal fragment to unlocked views

package webui

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
)

const defaultHelpTopic = "getting-started"

var helpTopicOrder = map[string]int{
	"getting-started": 1,
	"editing":         2,
	"troubleshooting": 3,
}

var helpTopicTitles = map[string]string{
	"getting-started": "はじめに",
	"editing":         "アプリの へんしゅう",
	"troubleshooting": "こまったとき",
}

// helpTopics lists the embedded topics in display order.
func helpTopics(selected string) []helpTopic {
	entries, err := fs.ReadDir(helpDocsFS, "docs/help")
	if err != nil {
		return nil
	}

	var topics []helpTopic
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		slug := strings.TrimSuffix(entry.Name(), ".md")
		title, ok := helpTopicTitles[slug]
		if !ok {
			title = slug
		}
		topics = append(topics, helpTopic{Slug: slug, Title: title, Active: slug == selected})
	}

	sort.Slice(topics, func(i, j int) bool {
		orderI, okI := helpTopicOrder[topics[i].Slug]
		orderJ, okJ := helpTopicOrder[topics[j].Slug]
		if !okI {
			orderI = 100
		}
		if !okJ {
			orderJ = 100
		}
		if orderI != orderJ {
			return orderI < orderJ
		}
		return topics[i].Slug < topics[j].Slug
	})
	return topics
}

// renderHelp converts one topic to HTML. Unknown topics render a not-found page.
func (u *UI) renderHelp(topic string) helpData {
	if topic == "" || strings.ContainsAny(topic, "/\\.") {
		topic = defaultHelpTopic
	}

	mdContent, err := helpDocsFS.ReadFile(path.Join("docs/help", topic+".md"))
	if err != nil {
		u.logger.Warn("failed to read help topic", "topic", topic, "error", err)
		mdContent = []byte("# みつかりません\n\nこの ページは ありません。")
	}

	var htmlBuf bytes.Buffer
	if err := goldmark.Convert(mdContent, &htmlBuf); err != nil {
		u.logger.Error("failed to convert markdown", "error", err)
		htmlBuf.Reset()
		htmlBuf.WriteString("<p>Failed to render help content.</p>")
	}

	return helpData{
		Topics:  helpTopics(topic),
		Content: template.HTML(htmlBuf.String()),
	}
}

// handleHelp returns the help modal for an unlocked view
func (u *UI) handleHelp(w http.ResponseWriter, r *http.Request, v *view) {
	u.render(w, "help_modal", u.renderHelp(r.URL.Query().Get("topic")))
}
