package commands

import (
	"github.com/spf13/cobra"

	vaultmcp "vaulttasks/internal/mcp"
)

func (c *CLI) newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve vault task tools over the Model Context Protocol on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := c.newEngine()
			if err != nil {
				return err
			}
			return vaultmcp.NewMCPServer(engine, c.log).Run()
		},
	}
}
