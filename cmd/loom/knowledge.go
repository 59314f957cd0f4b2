package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/njmorgan/loom/internal/knowledge"
)

func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage the local knowledge base",
	}
	cmd.AddCommand(newKnowledgeAddCmd())
	cmd.AddCommand(newKnowledgeSearchCmd())
	cmd.AddCommand(newKnowledgeStatusCmd())
	return cmd
}

func newKnowledgeAddCmd() *cobra.Command {
	var title string
	var tags []string
	var trust float64

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a note to the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := knowledge.NewStore(cfg.Knowledge.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			content := strings.Join(args, " ")
			if title == "" {
				title = firstWords(content, 8)
			}

			item := &knowledge.Item{
				Title:      title,
				Content:    content,
				SourceType: knowledge.SourceNote,
				Tags:       tags,
				TrustScore: trust,
			}
			if err := store.Add(cmd.Context(), item); err != nil {
				return err
			}
			fmt.Printf("added %s\n", item.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "note title (default: first words of content)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tags (repeatable)")
	cmd.Flags().Float64Var(&trust, "trust", 0, "trust score 0-1 (default 0.5)")
	return cmd
}

func newKnowledgeSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := knowledge.NewStore(cfg.Knowledge.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			hits, err := store.Search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintln(os.Stderr, "no results")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%s  %s\n    %s\n",
					dimStyle.Render(fmt.Sprintf("%.2f", h.RelevanceScore)),
					toolStyle.Render(h.Title),
					h.Snippet)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	return cmd
}

func newKnowledgeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := knowledge.NewStore(cfg.Knowledge.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("items: %d\npath:  %s\n", n, cfg.Knowledge.DataDir)
			return nil
		},
	}
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
