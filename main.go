package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"monitorbot/internal/app"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "monitorbot",
	Short: "Monitors immigration communities and flags posts that need a lawyer's reply",
	Long: `monitorbot polls Reddit, forum RSS feeds and Telegram chats, classifies
new posts with keyword matching and AI verification, and notifies the
configured channels about questions worth answering.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Build(cfgFile)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Run()
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single monitoring cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Build(cfgFile)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.RunOnce(cmd.Context())
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print processing statistics and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Build(cfgFile)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Store.Stats()
		if err != nil {
			return fmt.Errorf("read stats: %w", err)
		}

		fmt.Printf("Total processed:  %d\n", stats.TotalProcessed)
		fmt.Printf("Total notified:   %d\n", stats.TotalNotified)
		fmt.Printf("Processed today:  %d\n", stats.TodayProcessed)
		if len(stats.BySource) > 0 {
			fmt.Println("By source:")
			sources := make([]string, 0, len(stats.BySource))
			for s := range stats.BySource {
				sources = append(sources, s)
			}
			sort.Strings(sources)
			for _, s := range sources {
				fmt.Printf("  %-20s %d\n", s, stats.BySource[s])
			}
		}
		return nil
	},
}

var testNotifyCmd = &cobra.Command{
	Use:   "test-notify",
	Short: "Send a test notification to every configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.Build(cfgFile)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.TestNotify(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(onceCmd, statsCmd, testNotifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
