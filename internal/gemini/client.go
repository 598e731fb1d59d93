// Package gemini is the generative backend: chat with function calling,
// titles, images, reasoning, grounded search, speech synthesis and
// transcription on google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	"google.golang.org/genai"
)

const reasoningThinkingBudget = 8192

// Generator is the subset of *genai.Models the client calls.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

type Models struct {
	Chat      string
	Title     string
	Image     string
	Studio    string
	Reasoning string
	TTS       string
	STT       string
}

func ModelsFromConfig(cfg *config.Config) Models {
	return Models{
		Chat:      cfg.ChatModel,
		Title:     cfg.TitleModel,
		Image:     cfg.ImageModel,
		Studio:    cfg.StudioModel,
		Reasoning: cfg.ReasoningModel,
		TTS:       cfg.TTSModel,
		STT:       cfg.STTModel,
	}
}

type Client struct {
	gen    Generator
	models Models
	titles *TitleResolver
}

// NewClient connects to the Gemini API with an API key.
func NewClient(ctx context.Context, apiKey string, models Models) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return New(c.Models, models, NewTitleResolver()), nil
}

// New builds a client over any Generator. titles may be nil to keep
// citation titles as returned.
func New(gen Generator, models Models, titles *TitleResolver) *Client {
	return &Client{gen: gen, models: models, titles: titles}
}

// Chat sends one user turn on top of history and returns text, citations
// and function calls.
func (c *Client) Chat(ctx context.Context, history []domain.Message, text string, image *domain.Blob) (domain.Reply, error) {
	contents := buildContents(history, text, image)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Tools:             []*genai.Tool{{FunctionDeclarations: functionDeclarations()}},
	}
	resp, err := c.gen.GenerateContent(ctx, c.models.Chat, contents, cfg)
	if err != nil {
		return domain.Reply{}, classify("chat", err)
	}
	reply := replyFromResponse(resp)
	reply.Sources = c.resolveTitles(ctx, reply.Sources)
	return reply, nil
}

// SummarizeTitle condenses the first user message into a short title.
func (c *Client) SummarizeTitle(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following message as a chat title of at most five words. " +
		"Reply with the title only, without quotes or punctuation at the end.\n\n" + text
	resp, err := c.gen.GenerateContent(ctx, c.models.Title, genai.Text(prompt), nil)
	if err != nil {
		return "", classify("summarize title", err)
	}
	title := cleanTitle(responseText(resp))
	if title == "" {
		return "", classify("summarize title", errors.New("empty title"))
	}
	return title, nil
}

func (c *Client) GenerateImage(ctx context.Context, prompt, aspectRatio string) (domain.Blob, error) {
	if aspectRatio == "" {
		aspectRatio = config.DefaultAspectRatio
	}
	resp, err := c.gen.GenerateImages(ctx, c.models.Image, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio,
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return domain.Blob{}, classify("generate image", err)
	}
	for _, gi := range resp.GeneratedImages {
		if gi == nil || gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		mime := gi.Image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return domain.Blob{Data: gi.Image.ImageBytes, MIMEType: mime}, nil
	}
	return domain.Blob{}, classify("generate image", errors.New("no image returned"))
}

// CombineImages asks the image model to compose a new picture from images
// and an instruction.
func (c *Client) CombineImages(ctx context.Context, prompt string, images []domain.Blob) (domain.Blob, error) {
	if len(images) == 0 {
		return domain.Blob{}, classify("combine images", errors.New("no source images"))
	}
	parts := make([]*genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	resp, err := c.gen.GenerateContent(ctx, c.models.Studio,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	)
	if err != nil {
		return domain.Blob{}, classify("combine images", err)
	}
	blob, ok := firstInline(resp, "image/")
	if !ok {
		return domain.Blob{}, classify("combine images", errors.New("no image returned"))
	}
	return blob, nil
}

// SolveComplexTask runs the prompt on the reasoning model with thinking on.
func (c *Client) SolveComplexTask(ctx context.Context, prompt string) (string, error) {
	resp, err := c.gen.GenerateContent(ctx, c.models.Reasoning, genai.Text(prompt), &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](reasoningThinkingBudget)},
	})
	if err != nil {
		return "", classify("solve complex task", err)
	}
	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", classify("solve complex task", errors.New("empty answer"))
	}
	return text, nil
}

// GroundedQuery answers with Google Search, or Google Maps when useMaps is
// set. A location biases maps results.
func (c *Client) GroundedQuery(ctx context.Context, prompt string, loc *domain.Location, useMaps bool) (domain.Reply, error) {
	tool := &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
	if useMaps {
		tool = &genai.Tool{GoogleMaps: &genai.GoogleMaps{}}
	}
	cfg := &genai.GenerateContentConfig{Tools: []*genai.Tool{tool}}
	if loc != nil {
		cfg.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng: &genai.LatLng{
					Latitude:  genai.Ptr(loc.Latitude),
					Longitude: genai.Ptr(loc.Longitude),
				},
			},
		}
	}
	resp, err := c.gen.GenerateContent(ctx, c.models.Chat, genai.Text(prompt), cfg)
	if err != nil {
		return domain.Reply{}, classify("grounded query", err)
	}
	reply := replyFromResponse(resp)
	reply.Calls = nil
	reply.Sources = c.resolveTitles(ctx, reply.Sources)
	return reply, nil
}

// Synthesize returns encoded speech for text, typically raw PCM with an
// "audio/L16;rate=24000" MIME type.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (domain.Blob, error) {
	resp, err := c.gen.GenerateContent(ctx, c.models.TTS, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	})
	if err != nil {
		return domain.Blob{}, classify("synthesize speech", err)
	}
	blob, ok := firstInline(resp, "audio/")
	if !ok {
		return domain.Blob{}, classify("synthesize speech", errors.New("no audio returned"))
	}
	return blob, nil
}

// Transcribe turns one recorded utterance into text. An empty result means
// no speech was heard.
func (c *Client) Transcribe(ctx context.Context, audio domain.Blob, locale string) (string, error) {
	instruction := fmt.Sprintf("Transcribe this %s speech verbatim. "+
		"Reply with the transcript only. If there is no intelligible speech, reply with an empty message.", locale)
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(audio.Data, audio.MIMEType),
		genai.NewPartFromText(instruction),
	}, genai.RoleUser)}
	resp, err := c.gen.GenerateContent(ctx, c.models.STT, contents, nil)
	if err != nil {
		return "", classify("transcribe", err)
	}
	return strings.TrimSpace(responseText(resp)), nil
}

func (c *Client) resolveTitles(ctx context.Context, sources []domain.Source) []domain.Source {
	if c.titles == nil || len(sources) == 0 {
		return sources
	}
	return c.titles.Resolve(ctx, sources)
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'*# ")
	s = strings.TrimRight(s, ".!")
	r := []rune(s)
	if len(r) > config.TitleMaxRunes {
		s = strings.TrimSpace(string(r[:config.TitleMaxRunes])) + "…"
	}
	return s
}
