package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jaki95/dropcrate/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const llmTimeout = 90 * time.Second

const systemPrompt = `You classify DJ source items into a fixed taxonomy.
Kinds: track, set, podcast, video, unknown.
Genres: Afro House, Amapiano, Hard Techno, Melodic House & Techno, Minimal Techno,
Acid Techno, Peak Time Techno, Techno, Tech House, Progressive House, Deep House,
Funky House, Soulful House, Jackin House, House, Drum & Bass, Dubstep, UK Garage,
Breaks, Bass House, Psytrance, Uplifting Trance, Trance, Disco, Electro, Downtempo, Other.
Map "Techno" or "Melodic Techno" described as melodic to "Melodic House & Techno".
Energies: 1/5, 2/5, 3/5, 4/5, 5/5, or empty. Times: Warmup, Peak, Closing, or empty.
Vibes: comma-joined subset of Organic, Tribal, Latin, Minimal, Dark, Vocal, Instrumental, Driving, Hypnotic.
Tutorials and lessons are always "video" even if they demo a track.
If an item has no usable info, return kind=unknown, confidence=0, and a note explaining the fetch failed.
Return null (empty string) fields rather than guessing.`

// llmItem is the compact per-item projection sent to the model, truncated
// per §4.6.
type llmItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Uploader    string   `json:"uploader"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Categories  []string `json:"categories"`
}

// llmResult is one element of the classify_dj_tags tool response.
type llmResult struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Genre      string  `json:"genre"`
	Energy     string  `json:"energy"`
	Time       string  `json:"time"`
	Vibe       string  `json:"vibe"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes"`
}

type llmResponse struct {
	Results []llmResult `json:"results"`
}

// Item pairs a caller's id/url with the extracted info needed to classify it.
type Item struct {
	ID   string
	URL  string
	Info domain.ExtractedInfo
}

// Client wraps the OpenAI chat-completion API for the classify_dj_tags
// tool call described in §4.6.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds an LLM classifier client. apiKey/model are read from
// OPENAI_API_KEY/LLM_MODEL by the caller (internal/server); passing
// them explicitly here keeps this package free of global state per the
// process-wide-state-via-initializer design note.
func NewClient(apiKey, model string) *Client {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{api: openai.NewClient(apiKey), model: model}
}

// newClientWithConfig builds a Client against a custom OpenAI config, used
// in tests to point at an httptest server instead of the real API.
func newClientWithConfig(cfg openai.ClientConfig, model string) *Client {
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

var classifyTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "classify_dj_tags",
		Description: "Classify a batch of DJ source items into kind and DJ tags.",
		Strict:      true,
		Parameters: json.RawMessage(`{
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"results": {
					"type": "array",
					"items": {
						"type": "object",
						"additionalProperties": false,
						"properties": {
							"id": {"type": "string"},
							"kind": {"type": "string", "enum": ["track","set","podcast","video","unknown"]},
							"genre": {"type": "string"},
							"energy": {"type": "string"},
							"time": {"type": "string"},
							"vibe": {"type": "string"},
							"confidence": {"type": "number"},
							"notes": {"type": "string"}
						},
						"required": ["id","kind","genre","energy","time","vibe","confidence","notes"]
					}
				}
			},
			"required": ["results"]
		}`),
	},
}

// Classify implements the L6 contract: a single tool call covering the
// whole batch. Any failure is returned as an error; callers then fall back
// to the heuristic classifier for every item in items.
func (c *Client) Classify(ctx context.Context, items []Item) ([]domain.Classification, error) {
	if c == nil {
		return nil, fmt.Errorf("llm classifier not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	payload := make([]llmItem, 0, len(items))
	for _, it := range items {
		payload = append(payload, llmItem{
			ID:          it.ID,
			Title:       truncate(it.Info.Title, 220),
			Uploader:    truncate(it.Info.Uploader, 120),
			Description: truncate(it.Info.Description, 800),
			Tags:        truncateSlice(it.Info.Tags, 25),
			Categories:  truncateSlice(it.Info.Categories, 8),
		})
	}
	userPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal llm payload: %w", err)
	}

	temp := float32(0.2)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(userPayload)},
		},
		Tools:       []openai.Tool{classifyTool},
		ToolChoice:  openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: "classify_dj_tags"}},
		Temperature: temp,
	})
	if err != nil {
		return nil, fmt.Errorf("llm chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("llm returned no tool call")
	}

	var parsed llmResponse
	args := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return nil, fmt.Errorf("parse classify_dj_tags arguments: %w", err)
	}

	byID := make(map[string]llmResult, len(parsed.Results))
	for _, r := range parsed.Results {
		byID[r.ID] = r
	}

	out := make([]domain.Classification, len(items))
	for i, it := range items {
		r, ok := byID[it.ID]
		if !ok {
			out[i] = domain.Classification{
				Kind:       domain.KindUnknown,
				Confidence: 0,
				Notes:      "No classification returned.",
				Source:     domain.SourceLLM,
			}
			continue
		}
		out[i] = domain.Classification{
			Kind: domain.Kind(r.Kind),
			Tags: domain.DJTags{
				Genre:  r.Genre,
				Energy: r.Energy,
				Time:   r.Time,
				Vibe:   r.Vibe,
			},
			Confidence: r.Confidence,
			Notes:      r.Notes,
			Source:     domain.SourceLLM,
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func truncateSlice(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
