package kgembed

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "kgembed",
		Short: "kgembed: TransE embeddings for knowledge graphs",
		Long: `kgembed learns TransE embeddings for the entities and relations of a
knowledge graph and uses them to predict missing facts.

Triplets are read from Neo4j, PostgreSQL, Parquet files, an embedded Ladybug
database or an inline list. Checkpoints are written after every epoch.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kgembed.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Corpus and checkpoint flags shared by every command
	rootCmd.PersistentFlags().String("corpus", "", "corpus backend (memory, neo4j, postgres, parquet, ladybug)")
	rootCmd.PersistentFlags().String("corpus-path", "", "parquet file or ladybug database path")
	rootCmd.PersistentFlags().String("checkpoint-backend", "", "checkpoint store (file, badger)")
	rootCmd.PersistentFlags().String("checkpoint-dir", "", "checkpoint directory")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".kgembed" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".kgembed")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
