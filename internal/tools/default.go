package tools

import "github.com/ZanzyTHEbar/taskweave"

// DefaultDataEndpoint is where the built-in DataFetcher posts its payload.
const DefaultDataEndpoint = "https://api.example.com/v1/data"

// Default returns the built-in registry.
func Default() *Registry {
	r, err := NewRegistry(DefaultTools())
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultTools returns the built-in tool definitions.
func DefaultTools() []taskweave.ToolDefinition {
	return []taskweave.ToolDefinition{
		{
			Name:        "ProblemTranslator",
			Description: "Rewrites the user request as a precise problem statement.",
			Tags:        []string{"language", "planning"},
			Spec: taskweave.PromptSpec{
				Template: "Restate the following request as a precise, self-contained problem statement: {input}",
			},
		},
		{
			Name:        "DataFetcher",
			Description: "Fetches the data the problem needs from the data API.",
			DependsOn:   []string{"ProblemTranslator"},
			Tags:        []string{"data", "remote"},
			Spec: taskweave.RemoteCallSpec{
				Endpoint: DefaultDataEndpoint,
				Method:   "POST",
				Params:   []string{"question", "ProblemTranslator"},
			},
		},
		{
			Name:        "Analyzer",
			Description: "Analyzes the fetched data against the problem statement.",
			DependsOn:   []string{"ProblemTranslator", "DataFetcher"},
			Tags:        []string{"analysis"},
			Spec: taskweave.AnalysisSpec{
				Template: "Analyze the following inputs and answer the question: {input}",
			},
		},
		{
			Name:        "ReportWriter",
			Description: "Writes a short report from the analysis.",
			DependsOn:   []string{"Analyzer"},
			Tags:        []string{"language", "reporting"},
			Spec: taskweave.AnalysisSpec{
				Template: "Write a concise report for a business reader from: {input}",
			},
		},
	}
}
