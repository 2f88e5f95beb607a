/***************************************************************
 *
 * Copyright (C) 2026, ImageVault Project
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imagevault/imagevault/config"
	"github.com/imagevault/imagevault/param"
)

var rootCmd = &cobra.Command{
	Use:   "imagevault",
	Short: "Coordinated image fetching with a two-tier local cache",
	Long: "imagevault fetches remote content through a deduplicating transfer\n" +
		"coordinator and a two-tier (memory + disk) cache with priority retention.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			viper.Set(param.Logging_Level.GetName(), "debug")
		}
		return config.InitConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("cache-dir", "", "Override the cache data location")
	if err := viper.BindPFlag(param.Cache_DataLocation.GetName(), rootCmd.PersistentFlags().Lookup("cache-dir")); err != nil {
		log.Fatalln("Failed to bind the cache-dir flag:", err)
	}

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(cacheCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
