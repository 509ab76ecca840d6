package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/rfpwatch/docpipe"
	"github.com/hazyhaar/rfpwatch/scoring"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose the scoring and document extraction tools over MCP on stdio.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Scoring.Thresholds.Validate(); err != nil {
				return err
			}
			srv := newMCPServer(scoring.New(a.cfg.Scoring), docpipe.New(a.cfg.Docpipe))
			a.logger.Info("rfpwatch: mcp server on stdio")
			return srv.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}

func newMCPServer(sc *scoring.Scorer, pipe *docpipe.Pipeline) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "rfpwatch", Version: version}, nil)
	sc.RegisterMCP(srv)
	pipe.RegisterMCP(srv)
	return srv
}
