package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sadopc/dbcrawl/internal/adapter"
	"github.com/sadopc/dbcrawl/internal/config"
)

func newConnectionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "List the saved connections",
		Args:    cobra.NoArgs,
		RunE:    a.runListConnections,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add name [dsn]",
		Short: "Save a connection from a DSN or the connection flags",
		Long: `Save a connection to the config file under the given name. A connection
with the same name is replaced. The password is stored in plain text.

Examples:
  dbcrawl connections add shop postgres://crawler@db/shop
  dbcrawl connections add books --adapter sqlite --file ./books.db`,
		Args: cobra.RangeArgs(1, 2),
		RunE: a.runAddConnection,
	})
	return cmd
}

func (a *app) runListConnections(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if len(a.cfg.Connections) == 0 {
		fmt.Fprintf(out, "no saved connections in %s\n", a.path)
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, sc := range a.cfg.Connections {
		fmt.Fprintf(w, "%s\t%s\n", sc.Name, sc.DisplayString())
	}
	return w.Flush()
}

func (a *app) runAddConnection(cmd *cobra.Command, args []string) error {
	sc := config.SavedConnection{Name: args[0], Adapter: a.v.GetString("adapter")}
	if len(args) > 1 {
		sc.DSN = args[1]
		if sc.Adapter == "" {
			sc.Adapter = detectAdapter(sc.DSN)
		}
	} else {
		sc.Host = a.v.GetString("host")
		sc.Port = a.v.GetInt("port")
		sc.User = a.v.GetString("user")
		sc.Password = a.v.GetString("password")
		sc.Database = a.v.GetString("database")
		sc.File = a.v.GetString("file")
	}
	sc.Adapter = strings.ToLower(sc.Adapter)
	if sc.Adapter == "" {
		return errNoDatabase
	}
	if _, ok := adapter.Registry[sc.Adapter]; !ok {
		return fmt.Errorf("unknown adapter: %s (available: %s)", sc.Adapter, availableAdapters())
	}

	a.cfg.SetConnection(sc)
	if err := a.cfg.Save(a.path); err != nil {
		return err
	}
	a.log.Info("connection saved", zap.String("name", sc.Name), zap.String("config", a.path))
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s: %s\n", sc.Name, sc.DisplayString())
	return nil
}
