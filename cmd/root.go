// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nfsmeta/distfs/cfg"
	"github.com/nfsmeta/distfs/internal/logger"
	"github.com/nfsmeta/distfs/internal/util"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	MountConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "distfs [flags] mount-dir",
	Short: "Mount a distributed, S3-backed network filesystem",
	Long: `distfs is a FUSE adapter for a distributed, S3-backed network
filesystem: a KV-backed inode catalog shared across nodes, with a
local block cache and cross-node cache invalidation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}

		mountDir, err := util.GetResolvedPath(args[0])
		if err != nil {
			return fmt.Errorf("canonicalizing mount-dir: %w", err)
		}
		MountConfig.MountDir = cfg.ResolvedPath(mountDir)

		if err := cfg.ValidateConfig(&MountConfig); err != nil {
			return err
		}

		if err := logger.InitLogFile(MountConfig.Logging); err != nil {
			return fmt.Errorf("logger.InitLogFile: %w", err)
		}

		return mount(context.Background(), &MountConfig)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to the config-file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()))
		return
	}

	resolved, err := util.GetResolvedPath(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("error while resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&MountConfig, viper.DecodeHook(cfg.DecodeHook()))
}
