package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
	"github.com/set-night/mindvoice/internal/repository"
	"github.com/set-night/mindvoice/internal/service"
	"github.com/spf13/cobra"
)

func newSessionsCmd(open opener, flags *storageFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show, export and import chats",
	}

	// withStore opens the record store for the duration of fn.
	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, records repository.RecordStore) error) error {
		ctx := cmd.Context()
		records, err := open(ctx, *flags)
		if err != nil {
			return fmt.Errorf("open record store: %w", err)
		}
		defer records.Close()
		return fn(ctx, records)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, records repository.RecordStore) error {
				c, err := loadCollection(ctx, records)
				if err != nil {
					return err
				}
				return writeList(cmd.OutOrStdout(), c)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the messages of one chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, records repository.RecordStore) error {
				c, err := loadCollection(ctx, records)
				if err != nil {
					return err
				}
				sess, _, ok := c.Find(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, args[0])
				}
				return writeSession(cmd.OutOrStdout(), sess)
			})
		},
	}

	export := &cobra.Command{
		Use:   "export <file|->",
		Short: "Write all chats as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, records repository.RecordStore) error {
				c, err := loadCollection(ctx, records)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(c, "", "  ")
				if err != nil {
					return fmt.Errorf("encode sessions: %w", err)
				}
				if args[0] == "-" {
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := os.WriteFile(args[0], data, 0o600); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Exported %d chats to %s\n", len(c.Sessions), args[0])
				return nil
			})
		},
	}

	var force bool
	importCmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace all chats with a JSON export",
		Long: `import validates the file the same way the bot does at boot: missing
message ids are synthesized, empty chats are re-seeded and an unknown active
chat falls back to the newest one. Existing chats are only replaced with --force.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			c, err := service.DecodeCollection(data)
			if err != nil {
				return fmt.Errorf("invalid export: %w", err)
			}
			return withStore(cmd, func(ctx context.Context, records repository.RecordStore) error {
				if _, err := records.Load(ctx, config.SessionStoreKey); err == nil && !force {
					return errors.New("chats already saved; use --force to replace them")
				}
				out, err := json.Marshal(c)
				if err != nil {
					return fmt.Errorf("encode sessions: %w", err)
				}
				if err := records.Save(ctx, config.SessionStoreKey, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %d chats\n", len(c.Sessions))
				return nil
			})
		},
	}
	importCmd.Flags().BoolVar(&force, "force", false, "replace existing chats")

	cmd.AddCommand(list, show, export, importCmd)
	return cmd
}

// loadCollection reads the stored chats through the boot-time decoder.
func loadCollection(ctx context.Context, records repository.RecordStore) (domain.SessionCollection, error) {
	data, err := records.Load(ctx, config.SessionStoreKey)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.SessionCollection{}, errors.New("no chats saved yet")
	}
	if err != nil {
		return domain.SessionCollection{}, err
	}
	return service.DecodeCollection(data)
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	return data, nil
}

func writeList(w io.Writer, c domain.SessionCollection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVE\tID\tTITLE\tMESSAGES")
	for _, s := range c.Sessions {
		active := ""
		if s.ID == c.ActiveID {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", active, s.ID, s.Title, len(s.Messages))
	}
	return tw.Flush()
}

func writeSession(w io.Writer, s domain.Session) error {
	if _, err := fmt.Fprintf(w, "# %s (%s)\n\n", s.Title, s.ID); err != nil {
		return err
	}
	for _, m := range s.Messages {
		var tags []string
		if m.IsError {
			tags = append(tags, "error")
		}
		if m.Image != "" {
			tags = append(tags, "image "+m.Image)
		}
		if m.GeneratedImage != "" {
			tags = append(tags, "generated "+m.GeneratedImage)
		}
		line := fmt.Sprintf("[%s] %s", m.Role, m.Text)
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, src := range m.Sources {
			fmt.Fprintf(w, "    - %s <%s>\n", src.Title, src.URI)
		}
	}
	return nil
}
