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
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/imagevault/imagevault/blob_cache"
	"github.com/imagevault/imagevault/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a resource through the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringP("output", "o", "", "Write the fetched bytes to this file instead of stdout")
	fetchCmd.Flags().Bool("priority", false, "Store the result in the priority namespace")
	fetchCmd.Flags().StringArray("header", nil, "Extra request header, formatted as 'Name: value'")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	egrp, ctx := errgroup.WithContext(ctx)

	cache := blob_cache.NewCache(ctx, egrp)
	if err := cache.WarmPriority(); err != nil {
		log.Warningln("Failed to preload priority cache entries:", err)
	}
	engine := fetch.NewEngine(ctx, egrp, cache)
	defer func() {
		engine.Shutdown()
		stop()
		if err := egrp.Wait(); err != nil {
			log.Warningln("Background task failed during shutdown:", err)
		}
	}()

	options := make([]fetch.FetchOption, 0)
	if priority, _ := cmd.Flags().GetBool("priority"); priority {
		options = append(options, fetch.WithPriority(true))
	}
	headers, _ := cmd.Flags().GetStringArray("header")
	for _, header := range headers {
		name, value, found := strings.Cut(header, ":")
		if !found {
			return errors.Errorf("malformed header %q; expected 'Name: value'", header)
		}
		options = append(options, fetch.WithHeader(strings.TrimSpace(name), strings.TrimSpace(value)))
	}

	data, err := engine.Fetch(ctx, args[0], options...)
	if err != nil {
		return err
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := os.WriteFile(output, data, 0644); err != nil {
			return errors.Wrap(err, "failed to write the output file")
		}
		log.Infof("Wrote %d bytes to %s", len(data), output)
		return nil
	}
	_, err = os.Stdout.Write(data)
	return err
}
