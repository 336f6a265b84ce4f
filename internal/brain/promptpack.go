package brain

import (
	"strconv"
	"strings"

	"github.com/agenthands/brain/internal/model"
)

// BuildPromptPack renders the search result into markdown with a fixed
// section order. The same inputs always produce the same bytes, so the
// pack is safe to cache or diff.
func BuildPromptPack(query string, hits []model.SearchHit, episodes []model.EpisodeHit, passages []model.Passage) model.PromptPack {
	var b strings.Builder

	b.WriteString("# Knowledge Context\n\n")
	b.WriteString("## Query\n\n")
	b.WriteString(query)
	b.WriteString("\n")

	if len(episodes) > 0 {
		b.WriteString("\n## Episodes\n\n")
		for _, ep := range episodes {
			b.WriteString("- ")
			b.WriteString(ep.ClusterID)
			b.WriteString(" (score ")
			b.WriteString(formatScore(ep.Score))
			b.WriteString(", members ")
			b.WriteString(strings.Join(ep.MemberIDs, ", "))
			b.WriteString(")\n")
		}
	}

	if len(hits) > 0 {
		b.WriteString("\n## Hits\n\n")
		for _, h := range hits {
			b.WriteString("- ")
			b.WriteString(hitLabel(h))
			b.WriteString(" [")
			b.WriteString(h.NodeID)
			b.WriteString("] (score ")
			b.WriteString(formatScore(h.Score))
			b.WriteString(")\n")
		}
	}

	if len(passages) > 0 {
		b.WriteString("\n## Passages\n")
		for _, p := range passages {
			b.WriteString("\n### ")
			b.WriteString(passageLabel(p))
			b.WriteString("\n\n")
			b.WriteString(p.Text)
			b.WriteString("\n")
		}
	}

	citations := make([]model.Citation, 0, len(hits))
	for _, h := range hits {
		citations = append(citations, model.Citation{
			NodeID: h.NodeID,
			Title:  h.Title,
			URL:    h.URL,
		})
	}

	return model.PromptPack{
		ContextMarkdown: b.String(),
		Citations:       citations,
	}
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 4, 64)
}

func hitLabel(h model.SearchHit) string {
	if h.Title != "" {
		return h.Title
	}
	return h.NodeID
}

func passageLabel(p model.Passage) string {
	if p.Title != "" {
		return p.Title
	}
	return p.NodeID
}
