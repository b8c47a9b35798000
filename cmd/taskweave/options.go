package main

import "context"

// Options is the root command. Flags override the matching environment settings.
type Options struct {
	Config   string `short:"f" long:"config" description:"tool configuration document (JSON or YAML)"`
	LogLevel string `long:"log-level" description:"debug, info, warn or error"`

	Run      *RunCmd      `command:"run" description:"Run one question through the configured tools"`
	Batch    *BatchCmd    `command:"batch" description:"Run many questions concurrently"`
	Generate *GenerateCmd `command:"generate" description:"Generate a tool configuration for a question"`
	Serve    *ServeCmd    `command:"serve" description:"Serve runs over HTTP"`
	MCP      *MCPCmd      `command:"mcp" description:"Serve runs as Model Context Protocol tools"`
}

func newOptions(ctx context.Context) *Options {
	o := &Options{}
	o.Run = &RunCmd{root: o, ctx: ctx}
	o.Batch = &BatchCmd{root: o, ctx: ctx}
	o.Generate = &GenerateCmd{root: o, ctx: ctx}
	o.Serve = &ServeCmd{root: o, ctx: ctx}
	o.MCP = &MCPCmd{root: o, ctx: ctx}
	return o
}
