// Package configgen turns a free-text question into a tool configuration
// document by asking the LLM to select tools from a registry. When the LLM
// is unavailable or its answer is unusable, a fixed safe subset is returned.
package configgen

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/taskweave"
	"github.com/ZanzyTHEbar/taskweave/internal/cache"
	"github.com/ZanzyTHEbar/taskweave/internal/tools"
)

// FallbackReason tags documents built from the safe subset.
const FallbackReason = "LLM config generation unavailable"

// safeSubset is preferred for fallback documents when the registry has these tools.
var safeSubset = map[string]struct{}{
	"ProblemTranslator": {},
	"DataFetcher":       {},
	"Analyzer":          {},
}

// Generator produces configuration documents.
type Generator struct {
	registry *tools.Registry
	llm      taskweave.LLM
	cache    *cache.InMemoryCache
	logger   *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithCache memoizes successful generations per question and registry.
func WithCache(c *cache.InMemoryCache) Option {
	return func(g *Generator) { g.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Generator over registry.
func New(registry *tools.Registry, llm taskweave.LLM, opts ...Option) *Generator {
	g := &Generator{registry: registry, llm: llm, logger: slog.Default()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Narrow returns a generator that only offers the registry tools matching
// patterns and tags, plus their dependencies. The cache and LLM are shared.
func (g *Generator) Narrow(patterns, tags []string) (*Generator, error) {
	if len(patterns) == 0 && len(tags) == 0 {
		return g, nil
	}
	reg, err := g.registry.Narrow(patterns, tags)
	if err != nil {
		return nil, err
	}
	n := *g
	n.registry = reg
	return &n, nil
}

// Generate returns a document for question. It fails only when the registry is empty.
func (g *Generator) Generate(ctx context.Context, question string) (taskweave.Document, error) {
	if g.registry == nil || g.registry.Len() == 0 {
		return taskweave.Document{}, taskweave.NewInvalidConfigError("tool schema registry is empty", nil)
	}

	key := g.cacheKey(question)
	if g.cache != nil {
		if v, err := g.cache.Get(ctx, key); err == nil {
			if doc, ok := v.(taskweave.Document); ok {
				g.logger.Debug("config generation cache hit", "key", key)
				return doc, nil
			}
		}
	}

	prompt, err := g.prompt(question)
	if err != nil {
		return g.fallback(question, err)
	}
	reply, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return g.fallback(question, err)
	}
	doc, err := g.normalize(reply)
	if err != nil {
		return g.fallback(question, err)
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, doc); err != nil {
			g.logger.Warn("config generation cache write failed", "error", err)
		}
	}
	return doc, nil
}

func (g *Generator) prompt(question string) (string, error) {
	registryJSON, err := json.Marshal(g.registry)
	if err != nil {
		return "", fmt.Errorf("encode registry: %w", err)
	}
	var b strings.Builder
	b.WriteString("You are a configuration generator for TaskWeave. ")
	b.WriteString("Given a user question and the tool registry JSON, select the minimal set of tools ")
	b.WriteString("needed to solve the request, and output ONLY valid JSON matching this shape:\n")
	b.WriteString(`{"agent": {"framework": "graph", "model": "` + taskweave.DefaultModel + `", "system_prompt": "..."}, "tools": [{"name": "<registry tool name>"}]}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Only use tool names from the registry.\n")
	b.WriteString("- Preserve dependency order (upstream before downstream).\n")
	b.WriteString("- Include only the tools needed.\n")
	b.WriteString("- Output JSON only, no extra text.\n\n")
	b.WriteString("User question: " + question + "\n\n")
	b.WriteString("Tool registry JSON:\n")
	b.Write(registryJSON)
	return b.String(), nil
}

type generated struct {
	Agent *taskweave.AgentSettings `json:"agent"`
	Tools []struct {
		Name string `json:"name"`
	} `json:"tools"`
}

// normalize parses the LLM reply and swaps every selected tool for the
// registry's own definition, adding the upstream tools it needs.
func (g *Generator) normalize(reply string) (taskweave.Document, error) {
	var out generated
	if err := json.Unmarshal([]byte(stripFence(reply)), &out); err != nil {
		return taskweave.Document{}, fmt.Errorf("reply is not JSON: %w", err)
	}
	if len(out.Tools) == 0 {
		return taskweave.Document{}, errors.New("reply selects no tools")
	}

	names := make([]string, 0, len(out.Tools))
	for _, t := range out.Tools {
		if _, ok := g.registry.Lookup(t.Name); !ok {
			return taskweave.Document{}, fmt.Errorf("selected tool '%s' not found in schema registry", t.Name)
		}
		names = append(names, t.Name)
	}
	selected, err := g.registry.Closure(names...)
	if err != nil {
		return taskweave.Document{}, err
	}

	agent := taskweave.DefaultAgentSettings()
	if out.Agent != nil {
		agent = taskweave.NormalizeDocument(taskweave.Document{Agent: *out.Agent}).Agent
	}
	if _, err := taskweave.ParseFramework(agent.Framework); err != nil {
		return taskweave.Document{}, err
	}
	return taskweave.Document{Agent: agent, Tools: selected}, nil
}

func (g *Generator) fallback(question string, cause error) (taskweave.Document, error) {
	g.logger.Warn("config generation fell back to safe subset", "error", cause)

	var names []string
	for _, def := range g.registry.Tools() {
		if _, ok := safeSubset[def.Name]; ok {
			names = append(names, def.Name)
		}
	}
	if len(names) == 0 {
		names = g.registry.Names()
		if len(names) > 3 {
			names = names[:3]
		}
	}
	selected, err := g.registry.Closure(names...)
	if err != nil {
		return taskweave.Document{}, err
	}
	return taskweave.Document{
		Agent: taskweave.DefaultAgentSettings(),
		Tools: selected,
		Metadata: map[string]any{
			"fallback_reason": FallbackReason,
			"question":        question,
		},
	}, nil
}

// cacheKey hashes the question together with the registry.
func (g *Generator) cacheKey(question string) string {
	input, err := json.Marshal(struct {
		Question string          `json:"question"`
		Registry *tools.Registry `json:"registry"`
	}{Question: question, Registry: g.registry})
	if err != nil {
		return "configgen:" + question
	}
	sum := sha1.Sum(input)
	return "configgen:" + hex.EncodeToString(sum[:])
}

// stripFence removes a surrounding markdown code fence, which models often add.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
