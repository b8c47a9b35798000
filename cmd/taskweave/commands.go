package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/taskweave"
	"github.com/ZanzyTHEbar/taskweave/internal/mcpserver"
	"github.com/ZanzyTHEbar/taskweave/internal/server"
)

// RunCmd runs one question.
type RunCmd struct {
	Question  string `short:"q" long:"question" description:"question to run; defaults to the positional arguments"`
	Framework string `long:"framework" description:"override the document's framework (sequential, graph, delegated)"`

	root *Options
	ctx  context.Context
}

func (c *RunCmd) Execute(args []string) error {
	question := c.Question
	if question == "" {
		question = strings.Join(args, " ")
	}
	a, err := newApp(c.ctx, c.root)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.document()
	if err != nil {
		return err
	}
	if c.Framework != "" {
		doc.Agent.Framework = c.Framework
	}
	o, err := taskweave.New(c.ctx, doc, a.orchestratorOptions()...)
	if err != nil {
		return err
	}
	resp, err := o.Invoke(c.ctx, taskweave.Request{Question: question})
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, resp)
}

// BatchCmd runs many questions with one orchestrator per question.
type BatchCmd struct {
	File    string `long:"file" description:"file with one question per line; '-' reads stdin"`
	Workers int    `short:"w" long:"workers" default:"4" description:"concurrent runs"`

	root *Options
	ctx  context.Context
}

func (c *BatchCmd) Execute(args []string) error {
	questions := args
	if c.File != "" {
		lines, err := readQuestions(c.File)
		if err != nil {
			return err
		}
		questions = append(questions, lines...)
	}
	if len(questions) == 0 {
		return errors.New("batch needs at least one question")
	}

	a, err := newApp(c.ctx, c.root)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.document()
	if err != nil {
		return err
	}
	results, err := taskweave.RunBatch(c.ctx, doc, questions,
		taskweave.WithWorkers(c.Workers),
		taskweave.WithOrchestratorOptions(a.orchestratorOptions()...))
	if err != nil {
		return err
	}

	type line struct {
		Question string              `json:"question"`
		Response *taskweave.Response `json:"response,omitempty"`
		Error    string              `json:"error,omitempty"`
	}
	out := make([]line, len(results))
	for i, r := range results {
		out[i] = line{Question: r.Question, Response: r.Response}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return writeJSON(os.Stdout, out)
}

// GenerateCmd asks the LLM for a tool configuration.
type GenerateCmd struct {
	Schema string   `long:"schema" description:"tool registry document; defaults to the built-in registry"`
	Tools  []string `long:"tools" description:"only offer registry tools whose names match this glob (repeatable)"`
	Tags   []string `long:"tags" description:"only offer registry tools carrying this tag (repeatable)"`
	Out    string   `short:"o" long:"out" description:"write the document to this file instead of stdout"`

	root *Options
	ctx  context.Context
}

func (c *GenerateCmd) Execute(args []string) error {
	question := strings.Join(args, " ")
	if strings.TrimSpace(question) == "" {
		return taskweave.NewMissingQuestionError()
	}
	a, err := newApp(c.ctx, c.root)
	if err != nil {
		return err
	}
	defer a.Close()
	if c.Schema != "" {
		a.cfg.SchemaPath = c.Schema
	}

	gen, err := a.generator(c.Tools, c.Tags)
	if err != nil {
		return err
	}
	doc, err := gen.Generate(c.ctx, question)
	if err != nil {
		return err
	}
	if c.Out == "" {
		return writeJSON(os.Stdout, doc)
	}
	return writeJSONFile(c.Out, doc)
}

// ServeCmd serves the HTTP API.
type ServeCmd struct {
	Addr string `long:"addr" description:"listen address; defaults to TASKWEAVE_ADDR"`

	root *Options
	ctx  context.Context
}

func (c *ServeCmd) Execute([]string) error {
	a, err := newApp(c.ctx, c.root)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.document()
	if err != nil {
		return err
	}
	gen, err := a.generator(nil, nil)
	if err != nil {
		return err
	}
	srv, err := server.New(c.ctx, doc,
		server.WithOrchestratorOptions(a.orchestratorOptions()...),
		server.WithGenerator(gen),
		server.WithEventBus(a.bus),
		server.WithLogger(a.logger),
		server.WithJobRetention(a.cfg.JobRetention),
		server.WithShutdownTimeout(a.cfg.ShutdownTimeout))
	if err != nil {
		return err
	}
	addr := c.Addr
	if addr == "" {
		addr = a.cfg.Addr
	}
	return srv.ListenAndServe(c.ctx, addr)
}

// MCPCmd serves the MCP tools over stdio or streamable HTTP.
type MCPCmd struct {
	Transport string `long:"transport" default:"stdio" choice:"stdio" choice:"http" description:"MCP transport"`
	Addr      string `long:"addr" description:"listen address for the http transport; defaults to TASKWEAVE_ADDR"`
	Stateless bool   `long:"stateless" description:"serve the http transport without sessions"`

	root *Options
	ctx  context.Context
}

func (c *MCPCmd) Execute([]string) error {
	a, err := newApp(c.ctx, c.root)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.document()
	if err != nil {
		return err
	}
	gen, err := a.generator(nil, nil)
	if err != nil {
		return err
	}
	mcpSrv, err := mcpserver.Builder{
		Doc:       doc,
		Options:   a.orchestratorOptions(),
		Generator: gen,
		Logger:    a.logger,
	}.Build(c.ctx)
	if err != nil {
		return err
	}

	if c.Transport == "stdio" {
		return mcpserver.RunStdio(c.ctx, mcpSrv)
	}

	addr := c.Addr
	if addr == "" {
		addr = a.cfg.Addr
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mcpserver.HTTPHandler(mcpSrv, c.Stateless),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("mcp http server listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-c.ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

// readQuestions reads non-blank lines from path, or stdin for "-".
func readQuestions(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return scanQuestions(r)
}

func scanQuestions(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return out, nil
}
