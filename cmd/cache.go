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
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/imagevault/imagevault/blob_cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached content",
	RunE:  runCacheClear,
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired entries from the disk tier",
	RunE:  runCacheSweep,
}

var cacheLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List keys resident in the disk tier",
	RunE:  runCacheLs,
}

func init() {
	cacheClearCmd.Flags().Bool("memory-only", false, "Clear only the in-memory tier")
	cacheClearCmd.Flags().Bool("keep-priority", false, "Preserve priority-namespace entries (implies --memory-only)")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheSweepCmd)
	cacheCmd.AddCommand(cacheLsCmd)
}

func newCacheForCommand() (*blob_cache.Cache, context.CancelFunc, *errgroup.Group) {
	ctx, cancel := context.WithCancel(context.Background())
	egrp, ctx := errgroup.WithContext(ctx)
	return blob_cache.NewCache(ctx, egrp), cancel, egrp
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cache, cancel, egrp := newCacheForCommand()
	defer func() {
		cancel()
		_ = egrp.Wait()
	}()

	memoryOnly, _ := cmd.Flags().GetBool("memory-only")
	keepPriority, _ := cmd.Flags().GetBool("keep-priority")
	if memoryOnly || keepPriority {
		cache.ClearMemory(keepPriority)
		return nil
	}
	cache.ClearAll()
	return nil
}

func runCacheSweep(cmd *cobra.Command, args []string) error {
	cache, cancel, egrp := newCacheForCommand()
	defer func() {
		cancel()
		_ = egrp.Wait()
	}()

	removed, err := cache.Disk().SweepExpired(time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d expired entries\n", len(removed))
	return nil
}

func runCacheLs(cmd *cobra.Command, args []string) error {
	cache, cancel, egrp := newCacheForCommand()
	defer func() {
		cancel()
		_ = egrp.Wait()
	}()

	keys, err := cache.Disk().Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}
