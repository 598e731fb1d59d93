package gemini

import (
	"strings"

	"github.com/set-night/mindvoice/internal/domain"
	"google.golang.org/genai"
)

// buildContents maps stored messages to backend contents. Error messages
// and blank texts are skipped; adjacent messages of the same role are merged
// so the turns keep alternating.
func buildContents(history []domain.Message, text string, image *domain.Blob) []*genai.Content {
	var (
		contents []*genai.Content
		lastRole domain.Role
	)
	for _, m := range history {
		if m.IsError || strings.TrimSpace(m.Text) == "" {
			continue
		}
		if len(contents) > 0 && m.Role == lastRole {
			last := contents[len(contents)-1]
			last.Parts = append(last.Parts, genai.NewPartFromText(m.Text))
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Text, roleOf(m.Role)))
		lastRole = m.Role
	}

	var parts []*genai.Part
	if image != nil && len(image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}
	if strings.TrimSpace(text) != "" || len(parts) == 0 {
		parts = append(parts, genai.NewPartFromText(text))
	}
	if len(contents) > 0 && lastRole == domain.RoleUser {
		last := contents[len(contents)-1]
		last.Parts = append(last.Parts, parts...)
		return contents
	}
	return append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
}

func roleOf(r domain.Role) genai.Role {
	if r == domain.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// replyFromResponse reads the first candidate: visible text parts, function
// calls in order and grounding citations without duplicates.
func replyFromResponse(resp *genai.GenerateContentResponse) domain.Reply {
	var reply domain.Reply
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return reply
	}
	cand := resp.Candidates[0]

	var sb strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			if p.Text != "" {
				sb.WriteString(p.Text)
			}
			if p.FunctionCall != nil {
				reply.Calls = append(reply.Calls, domain.FunctionCallIntent{
					Name: domain.FunctionName(p.FunctionCall.Name),
					Args: p.FunctionCall.Args,
				})
			}
		}
	}
	reply.Text = strings.TrimSpace(sb.String())
	reply.Sources = sourcesOf(cand.GroundingMetadata)
	return reply
}

func sourcesOf(gm *genai.GroundingMetadata) []domain.Source {
	if gm == nil {
		return nil
	}
	var out []domain.Source
	seen := make(map[string]bool)
	add := func(uri, title string) {
		if uri == "" || seen[uri] {
			return
		}
		seen[uri] = true
		out = append(out, domain.Source{URI: uri, Title: strings.TrimSpace(title)})
	}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil {
			continue
		}
		if chunk.Web != nil {
			add(chunk.Web.URI, chunk.Web.Title)
		}
		if chunk.Maps != nil {
			add(chunk.Maps.URI, chunk.Maps.Title)
		}
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	return replyFromResponse(resp).Text
}

// firstInline returns the first inline payload whose MIME type starts with
// prefix.
func firstInline(resp *genai.GenerateContentResponse, prefix string) (domain.Blob, bool) {
	if resp == nil {
		return domain.Blob{}, false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			if strings.HasPrefix(p.InlineData.MIMEType, prefix) {
				return domain.Blob{Data: p.InlineData.Data, MIMEType: p.InlineData.MIMEType}, true
			}
		}
	}
	return domain.Blob{}, false
}
