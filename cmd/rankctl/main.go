// Command rankctl is the administrative CLI over the product-discovery
// ranking engine: ranking weights, catalog maintenance, evaluation
// metrics, and search-log inspection (spec §6 Admin API surface).
package main

import (
	"log"

	"github.com/spf13/viper"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	viper.SetEnvPrefix("RANKCTL")
	viper.AutomaticEnv()
}
