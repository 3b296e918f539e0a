package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/legalrag/internal/rag"
	"github.com/xxxsen/legalrag/internal/service"
	"github.com/xxxsen/legalrag/internal/source"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "legalrag",
		Short: "legal assistant answering from a curated corpus",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}

	var ingestReq service.IngestRequest
	var ingestFile string
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "add or replace a document in the corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ingestFile == "" {
				return fmt.Errorf("--file is required")
			}
			content, err := source.ExtractFile(ingestFile)
			if err != nil {
				return fmt.Errorf("read %s: %w", ingestFile, err)
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			req := ingestReq
			req.Content = content
			doc, err := a.ingest.Ingest(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, doc)
		},
	}
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "pdf, markdown or plain text file")
	ingestCmd.Flags().StringVar(&ingestReq.ID, "id", "", "document id to replace")
	ingestCmd.Flags().StringVar(&ingestReq.Title, "title", "", "document title")
	ingestCmd.Flags().StringVar(&ingestReq.URL, "url", "", "source url")
	ingestCmd.Flags().StringVar(&ingestReq.Category, "category", "", "statute, case-law, regulation or guide")

	var askContext string
	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "answer one question from the corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			answer, err := a.qa.Ask(cmd.Context(), rag.Question{
				Text:    strings.Join(args, " "),
				Context: askContext,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, answer)
		},
	}
	askCmd.Flags().StringVar(&askContext, "context", "", "extra context from the user")

	var batch int
	reembedCmd := &cobra.Command{
		Use:   "reembed",
		Short: "re-embed chunks created by another embedding model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if batch <= 0 {
				return fmt.Errorf("--batch must be positive")
			}
			total := 0
			for {
				n, err := a.ingest.ReembedStale(cmd.Context(), batch)
				total += n
				if err != nil {
					return err
				}
				if n < batch {
					break
				}
			}
			logutil.GetLogger(cmd.Context()).Info("re-embedding finished", zap.Int("updated", total))
			return nil
		},
	}
	reembedCmd.Flags().IntVar(&batch, "batch", 100, "chunks per round")

	rootCmd.AddCommand(runCmd, ingestCmd, askCmd, reembedCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
