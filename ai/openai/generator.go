// Copyright 2025 BookVision Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bookvision/bookvision/ai"
	"github.com/bookvision/bookvision/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// "none" token works for local OpenAI-compatible services without auth
	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken("none"),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Answer produces a passage-grounded response to the question.
func (g *Generator) Answer(ctx context.Context, question string, passages []*core.Chunk) (string, error) {
	g.logger.Debug("generating answer", "question_length", len(question), "passages", len(passages))
	return g.generate(ctx, answerSystemPrompt, buildAnswerPrompt(question, passages))
}

// Summarize condenses the passages into a short book summary.
func (g *Generator) Summarize(ctx context.Context, title string, passages []*core.Chunk) (string, error) {
	g.logger.Debug("generating summary", "title", title, "passages", len(passages))
	return g.generate(ctx, summarySystemPrompt, buildSummaryPrompt(title, passages))
}

func (g *Generator) generate(ctx context.Context, system, user string) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(system),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(user),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(g.temperature))
	if err != nil {
		g.logger.Error("generation request failed", "err", err)
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("generation returned no choices")
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" {
		return "", errors.New("generation returned empty content")
	}
	return text, nil
}
