package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mikeboe/filesearch-dashboard/pkg/config"
	"github.com/mikeboe/filesearch-dashboard/pkg/filesearch"
	"github.com/mikeboe/filesearch-dashboard/pkg/gemini"
	"github.com/mikeboe/filesearch-dashboard/pkg/session"
	"github.com/spf13/cobra"
)

// cli carries the flags and the session shared by all subcommands.
type cli struct {
	apiKey     string
	configPath string
	storeRef   string
	model      string

	newFactory func(cfg *config.Config) filesearch.Factory

	cfg  *config.Config
	sess *session.Session
}

func newRootCmd(newFactory func(cfg *config.Config) filesearch.Factory) *cobra.Command {
	c := &cli{newFactory: newFactory}

	rootCmd := &cobra.Command{
		Use:   "filesearch",
		Short: "Manage Gemini File Search stores from the terminal",
		Long: `filesearch creates File Search stores, uploads and indexes documents into them,
and answers questions grounded in their contents.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	rootCmd.PersistentFlags().StringVarP(&c.apiKey, "api-key", "k", "", "Gemini API key (default $GOOGLE_API_KEY)")
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&c.storeRef, "store", "s", "", "Active store, by resource name or display name")
	rootCmd.PersistentFlags().StringVarP(&c.model, "model", "m", "", "Model used for answers")

	rootCmd.AddCommand(c.storesCmd(), c.docsCmd(), c.uploadCmd(), c.askCmd())
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	// Setup structured logging
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(handler))

	apiKey := c.apiKey
	if apiKey == "" {
		apiKey = cfg.GoogleApiKey
	}
	model := c.model
	if model == "" {
		model = cfg.Model
	}
	model, err = gemini.ResolveModel(model)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := c.newFactory(cfg)(ctx, apiKey)
	if err != nil {
		return err
	}

	c.sess = session.New(client, session.Options{
		Model:                  model,
		DefaultStoreName:       cfg.StoreDisplayName,
		UseDefaultSystemPrompt: cfg.UseDefaultSystemPrompt,
	})

	if c.storeRef != "" {
		return c.selectStore(ctx, c.storeRef)
	}
	return nil
}

// selectStore activates the store whose resource name or display name is ref.
func (c *cli) selectStore(ctx context.Context, ref string) error {
	stores, err := c.sess.ListStores(ctx)
	if err != nil {
		return err
	}

	var matches []filesearch.Store
	for _, store := range stores {
		if store.ID == ref || store.ID == "fileSearchStores/"+ref {
			return c.sess.SelectStore(ctx, store)
		}
		if store.DisplayName == ref {
			matches = append(matches, store)
		}
	}

	switch len(matches) {
	case 0:
		return fmt.Errorf("store %s: %w", ref, filesearch.ErrNotFound)
	case 1:
		return c.sess.SelectStore(ctx, matches[0])
	default:
		return fmt.Errorf("display name %q matches %d stores, use the resource name", ref, len(matches))
	}
}

func (c *cli) requireStore() error {
	if c.sess.Active() == nil {
		return fmt.Errorf("%w: pass --store", filesearch.ErrNoActiveStore)
	}
	return nil
}

func (c *cli) storesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "List, create and delete stores",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the stores visible with the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := c.sess.ListStores(cmd.Context())
			if err != nil {
				return err
			}
			printStores(cmd.OutOrStdout(), stores, c.sess.Active())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create [NAME]",
		Short: "Create a store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			store, err := c.sess.CreateStore(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", store.ID, store.DisplayName)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the store selected with --store, including its documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireStore(); err != nil {
				return err
			}
			id := c.sess.Active().ID
			if err := c.sess.DeleteActiveStore(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			return nil
		},
	})

	return cmd
}

func (c *cli) docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List and delete documents of the active store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the documents of the active store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireStore(); err != nil {
				return err
			}
			printDocuments(cmd.OutOrStdout(), c.sess.Documents())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID...",
		Short: "Delete documents from the active store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireStore(); err != nil {
				return err
			}
			results, err := c.sess.DeleteDocuments(cmd.Context(), args)
			if results == nil && err != nil {
				return err
			}

			failed := 0
			out := cmd.OutOrStdout()
			for _, res := range results {
				if res.Deleted {
					fmt.Fprintf(out, "%s %s\n", color.GreenString("deleted"), res.ID)
					continue
				}
				failed++
				fmt.Fprintf(out, "%s %s: %s\n", color.RedString("failed"), res.ID, res.Error)
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", failed, len(results))
			}
			return nil
		},
	})

	return cmd
}

func (c *cli) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload files and index them into the active store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireStore(); err != nil {
				return err
			}

			files := make([]session.FileInput, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				files = append(files, session.FileInput{Filename: filepath.Base(path), Data: data})
			}

			results, err := c.sess.UploadBatch(cmd.Context(), files)
			if err != nil {
				return err
			}

			failed := 0
			out := cmd.OutOrStdout()
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(out, "%s %s: %s\n", color.RedString("failed"), res.Filename, res.Error)
					continue
				}
				fmt.Fprintf(out, "%s %s -> %s\n", color.GreenString("indexed"), res.Filename, res.Document.ID)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}
}

func (c *cli) askCmd() *cobra.Command {
	var (
		noSystemPrompt bool
		raw            bool
	)

	cmd := &cobra.Command{
		Use:   "ask [QUESTION]",
		Short: "Answer a question grounded in the active store",
		Long:  `Answer a question grounded in the active store. Without QUESTION the question is read from the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireStore(); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			if len(args) == 0 {
				// Interactive Mode
				reader := bufio.NewReader(cmd.InOrStdin())
				fmt.Fprint(cmd.OutOrStdout(), "Enter question: ")
				input, err := reader.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				query = input
			}

			useDefault := c.cfg.UseDefaultSystemPrompt && !noSystemPrompt
			answer, err := c.sess.Ask(cmd.Context(), query, useDefault)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if raw {
				return writeRaw(out, answer.Raw)
			}
			fmt.Fprintln(out, answer.Text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSystemPrompt, "no-system-prompt", false, "Send the question without the default system prompt")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the full model response as JSON")
	return cmd
}

func writeRaw(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStores(w io.Writer, stores []filesearch.Store, active *filesearch.Store) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tNAME\tDISPLAY NAME\tACTIVE\tPENDING\tFAILED\tSIZE")
	for _, s := range stores {
		marker := ""
		if active != nil && active.ID == s.ID {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			marker, s.ID, s.DisplayName, s.ActiveDocuments, s.PendingDocuments, s.FailedDocuments, formatBytes(s.SizeBytes))
	}
	tw.Flush()
}

func printDocuments(w io.Writer, docs []filesearch.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tNAME\tFILE\tTYPE\tSIZE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", statusLabel(d.Status), d.ID, d.Filename, d.MIMEType, formatBytes(d.SizeBytes))
	}
	tw.Flush()
}

func statusLabel(status filesearch.DocumentStatus) string {
	switch status {
	case filesearch.StatusIndexed:
		return color.GreenString(string(status))
	case filesearch.StatusFailed:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
