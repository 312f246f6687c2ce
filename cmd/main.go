package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"moments-agent/handler"
	"moments-agent/internal/api"
	"moments-agent/internal/config"
	"moments-agent/internal/scorer"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "moments-agent",
	Short:         "moments-agent - auto replies and ad screening for feed posts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnvFile(envFile)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as an AWS Lambda behind API Gateway",
	RunE:  runLambda,
}

var scoreCmd = &cobra.Command{
	Use:   "score [text]",
	Short: "Print ad and emotion scores for text (reads stdin when no argument is given)",
	RunE:  runScore,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	rootCmd.AddCommand(serveCmd, lambdaCmd, scoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := setupLogging(cfg.LogLevel)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx); err != nil {
			return err
		}
		defer a.sweeper.Stop()
	}

	srv, err := api.NewServer(a.svc, cfg.Port, logger)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

func runLambda(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := setupLogging(cfg.LogLevel)

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	h, err := handler.NewHandler(a.svc)
	if err != nil {
		return err
	}
	lambda.Start(h.Handle)
	return nil
}

type scoreOutput struct {
	IsAd               bool     `json:"is_ad"`
	Confidence         float64  `json:"confidence"`
	MatchedKeywords    []string `json:"matched_keywords"`
	AdExplanation      string   `json:"ad_explanation"`
	EmotionType        string   `json:"emotion_type"`
	NegativeScore      int      `json:"negative_score"`
	EmotionDescription string   `json:"emotion_description"`
}

func runScore(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("score: read stdin: %w", err)
		}
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("score: no text given")
	}

	ad := scorer.DetectAd(text)
	emotion := scorer.AnalyzeEmotion(text)
	out := scoreOutput{
		IsAd:               ad.IsAd,
		Confidence:         ad.Confidence,
		MatchedKeywords:    ad.MatchedKeywords,
		AdExplanation:      ad.Explanation,
		EmotionType:        string(emotion.Category),
		NegativeScore:      emotion.NegativityScore,
		EmotionDescription: emotion.Description,
	}
	if out.MatchedKeywords == nil {
		out.MatchedKeywords = []string{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
