package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPromptsDefaults(t *testing.T) {
	p, err := LoadPrompts("")
	require.NoError(t, err)

	assert.Contains(t, p.SystemPrompt, "course information assistant")
	assert.Contains(t, p.ContextTemplate, "Context:")
	assert.Len(t, p.Summaries, 3)
}

func TestLoadPromptsOverrideKeepsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system_prompt: be brief\nsummaries:\n  haiku: write a haiku\n"), 0o644))

	p, err := LoadPrompts(path)
	require.NoError(t, err)

	assert.Equal(t, "be brief", p.SystemPrompt)
	assert.NotEmpty(t, p.Greeting)
	assert.Equal(t, "write a haiku", p.Summaries["haiku"])
	assert.Contains(t, p.Summaries, "bullets")
}

func TestLoadPromptsMissingFile(t *testing.T) {
	_, err := LoadPrompts(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	out := Render("Context:\n{{context}}\nSources: {{sources}}", map[string]string{
		"context": "a\n\n---\n\nb",
		"sources": "x_chunk_1, x_chunk_2",
	})
	assert.Equal(t, "Context:\na\n\n---\n\nb\nSources: x_chunk_1, x_chunk_2", out)
}

func TestResolveModel(t *testing.T) {
	cfg := &Config{LLMProvider: "openai", GenModel: "mini"}
	assert.Equal(t, "gpt-4o-mini", cfg.ResolveModel(""))
	assert.Equal(t, "gpt-4o", cfg.ResolveModel("regular"))
	assert.Equal(t, "gpt-5-chat-latest", cfg.ResolveModel("gpt-5-chat-latest"))

	gem := &Config{LLMProvider: "gemini", GenModel: "mini"}
	assert.Equal(t, "gemini-1.5-flash", gem.ResolveModel(""))
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("RAGCHAT_TEST_INT", "7")
	t.Setenv("RAGCHAT_TEST_BAD_INT", "seven")
	t.Setenv("RAGCHAT_TEST_BOOL", "false")

	assert.Equal(t, 7, getEnvInt("RAGCHAT_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("RAGCHAT_TEST_BAD_INT", 1))
	assert.Equal(t, 3, getEnvInt("RAGCHAT_TEST_UNSET", 3))
	assert.False(t, getEnvBool("RAGCHAT_TEST_BOOL", true))
	assert.Equal(t, "dflt", getEnv("RAGCHAT_TEST_UNSET", "dflt"))
}
