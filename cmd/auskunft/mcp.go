package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/engine"
	"github.com/antwort-dev/auskunft/pkg/transport"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve ask and search tools over MCP on stdio",
	Long: `Expose the answering engine as Model Context Protocol tools.

The server speaks MCP over stdin/stdout, so an MCP-capable client
(such as an agent runtime) can call the "ask" and "search" tools
against the configured backend and document store.

Example client registration:
  auskunft mcp --config /etc/auskunft/config.yaml`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	prov, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()

	eng, err := buildEngine(cfg, prov, store)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "auskunft", Version: Version},
		nil,
	)
	registerTools(server, eng)

	return server.Run(ctx, &mcp.StdioTransport{})
}

type askInput struct {
	Question   string `json:"question" jsonschema_description:"The question to answer"`
	Collection string `json:"collection,omitempty" jsonschema_description:"Document collection to retrieve from (default: default)"`
	TopK       int    `json:"top_k,omitempty" jsonschema_description:"Number of context chunks to retrieve"`
}

type searchInput struct {
	Query      string `json:"query" jsonschema_description:"The search query"`
	Collection string `json:"collection,omitempty" jsonschema_description:"Document collection to search (default: default)"`
	TopK       int    `json:"top_k,omitempty" jsonschema_description:"Number of chunks to return"`
}

func registerTools(server *mcp.Server, eng *engine.Engine) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question grounded in the stored documents",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input askInput) (*mcp.CallToolResult, struct{}, error) {
		req := &api.CreateAnswerRequest{
			Question:   input.Question,
			Collection: input.Collection,
		}
		if input.TopK > 0 {
			req.TopK = &input.TopK
		}

		var sink answerSink
		if err := eng.CreateAnswer(ctx, req, &sink); err != nil {
			return nil, struct{}{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: formatAnswer(sink.answer)},
			},
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the most relevant document chunks for a query",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, struct{}, error) {
		req := &api.SearchRequest{
			Query:      input.Query,
			Collection: input.Collection,
		}
		if input.TopK > 0 {
			req.TopK = &input.TopK
		}

		results, err := eng.Search(ctx, req)
		if err != nil {
			return nil, struct{}{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: formatSources(results)},
			},
		}, struct{}{}, nil
	})
}

// answerSink collects the terminal answer from a non-streaming engine
// call. The engine writes exactly one answer for Stream=false requests.
type answerSink struct {
	answer *api.Answer
}

var _ transport.AnswerWriter = (*answerSink)(nil)

func (s *answerSink) WriteEvent(_ context.Context, event api.StreamEvent) error {
	if event.Answer != nil {
		s.answer = event.Answer
	}
	return nil
}

func (s *answerSink) WriteAnswer(_ context.Context, ans *api.Answer) error {
	s.answer = ans
	return nil
}

func (s *answerSink) Flush() error { return nil }

func formatAnswer(ans *api.Answer) string {
	if ans == nil {
		return "no answer produced"
	}
	var b strings.Builder
	b.WriteString(ans.Text)
	if len(ans.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, src := range ans.Sources {
			fmt.Fprintf(&b, "- %s (score %.2f)\n", src.DocumentName, src.Score)
		}
	}
	return b.String()
}

func formatSources(sources []api.Source) string {
	if len(sources) == 0 {
		return "no matching chunks"
	}
	var b strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&b, "%d. [%s, score %.2f]\n%s\n\n", i+1, src.DocumentName, src.Score, src.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
