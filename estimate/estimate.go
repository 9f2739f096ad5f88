// Package estimate predicts the token cost of a translation request
// before the expensive remote call is made.
//
// Text requests are tokenized with the model's BPE vocabulary via
// tiktoken; when the tokenizer cannot be initialized the estimator falls
// back to a character-count heuristic rather than failing the request.
// Image requests use the per-model patch or tile cost model.
package estimate

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// perMessageOverhead approximates chat-format framing cost per message.
	perMessageOverhead = 4

	// Response sizing: a translation is roughly as long as its source,
	// scaled by a safety ratio, never below the floor.
	responseRatio     = 1.15
	minResponseTokens = 8
	responseOverhead  = 4

	// fallbackCharsPerToken drives the heuristic used when the tokenizer
	// backend is unavailable.
	fallbackCharsPerToken = 3

	// fallbackEncoding is used for models tiktoken does not recognize.
	fallbackEncoding = "cl100k_base"

	defaultModel = "gpt-4o-mini"
)

const systemPrompt = "You are a professional translation engine. " +
	"Translate the user's text faithfully, preserving tone, formatting and terminology. " +
	"Output only the translation."

// Estimate is the predicted token cost of a single request. Derived per
// request, never stored.
type Estimate struct {
	SystemTokens   int64 `json:"systemOverheadTokens"`
	PromptTokens   int64 `json:"promptTokens"`
	SourceTokens   int64 `json:"sourceTokens"`
	ResponseTokens int64 `json:"estimatedResponseTokens"`
	TotalTokens    int64 `json:"totalTokens"`
}

// TextRequest describes a pending text translation.
type TextRequest struct {
	Model      string
	Text       string
	SourceLang string
	TargetLang string
}

// ImageRequest describes a pending image translation.
type ImageRequest struct {
	Model      string
	Width      int
	Height     int
	Detail     Detail
	SourceLang string
	TargetLang string
}

// Estimator computes token estimates. It caches one tokenizer instance
// per model; concurrent first callers share a single initialization
// attempt. The zero value is not usable, call New.
type Estimator struct {
	defaultModel string

	mu       sync.Mutex
	encoders map[string]*encoderEntry
}

type encoderEntry struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(e *Estimator) { e.defaultModel = model }
}

// New creates an Estimator.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		defaultModel: defaultModel,
		encoders:     make(map[string]*encoderEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Text estimates the cost of a text translation. Empty or whitespace-only
// input yields a zero estimate. Never fails: tokenizer trouble degrades
// to the character-count heuristic.
func (e *Estimator) Text(req TextRequest) Estimate {
	if strings.TrimSpace(req.Text) == "" {
		return Estimate{}
	}
	model := e.model(req.Model)

	system := e.count(model, systemPrompt) + perMessageOverhead
	prompt := e.count(model, userPrompt(req.Text, req.SourceLang, req.TargetLang)) + perMessageOverhead
	source := e.count(model, req.Text)
	response := responseEstimate(source)

	return Estimate{
		SystemTokens:   system,
		PromptTokens:   prompt,
		SourceTokens:   source,
		ResponseTokens: response,
		TotalTokens:    system + prompt + source + response,
	}
}

// Image estimates the cost of an image translation. The image cost model
// fills the source slot; prompt and response are derived the same way as
// for text.
func (e *Estimator) Image(req ImageRequest) Estimate {
	source := ImageTokens(e.model(req.Model), req.Width, req.Height, req.Detail)
	if source == 0 {
		return Estimate{}
	}
	model := e.model(req.Model)

	system := e.count(model, systemPrompt) + perMessageOverhead
	prompt := e.count(model, imagePrompt(req.SourceLang, req.TargetLang)) + perMessageOverhead
	response := responseEstimate(source)

	return Estimate{
		SystemTokens:   system,
		PromptTokens:   prompt,
		SourceTokens:   source,
		ResponseTokens: response,
		TotalTokens:    system + prompt + source + response,
	}
}

func (e *Estimator) model(model string) string {
	if model == "" {
		return e.defaultModel
	}
	return model
}

// count tokenizes text with the model's encoder, or falls back to the
// character heuristic when the encoder cannot be initialized.
func (e *Estimator) count(model, text string) int64 {
	if text == "" {
		return 0
	}
	enc, err := e.encoderFor(model)
	if err != nil {
		return heuristicCount(text)
	}
	return int64(len(enc.Encode(text, nil, nil)))
}

// encoderFor returns the memoized encoder for a model. The entry's Once
// guards initialization so concurrent first callers do not race separate
// loads of the same vocabulary.
func (e *Estimator) encoderFor(model string) (*tiktoken.Tiktoken, error) {
	e.mu.Lock()
	entry, ok := e.encoders[model]
	if !ok {
		entry = &encoderEntry{}
		e.encoders[model] = entry
	}
	e.mu.Unlock()

	entry.once.Do(func() {
		entry.enc, entry.err = tiktoken.EncodingForModel(model)
		if entry.err != nil {
			entry.enc, entry.err = tiktoken.GetEncoding(fallbackEncoding)
		}
	})
	return entry.enc, entry.err
}

func responseEstimate(source int64) int64 {
	r := int64(math.Round(float64(source) * responseRatio))
	if r < source {
		r = source
	}
	if r < minResponseTokens {
		r = minResponseTokens
	}
	return r + responseOverhead
}

// heuristicCount is the last-resort estimate when no tokenizer is
// available: ceil(characters / 3).
func heuristicCount(text string) int64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return int64((n + fallbackCharsPerToken - 1) / fallbackCharsPerToken)
}

func userPrompt(text, sourceLang, targetLang string) string {
	return fmt.Sprintf("Translate the following text from %s to %s. Reply with the translation only.\n\"\"\"\n%s\n\"\"\"",
		langOrAuto(sourceLang), langOrAuto(targetLang), text)
}

func imagePrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf("Translate all text in this image from %s to %s. Reply with the translation only.",
		langOrAuto(sourceLang), langOrAuto(targetLang))
}

func langOrAuto(lang string) string {
	if lang == "" {
		return "auto"
	}
	return lang
}
