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

// Package config owns process-wide configuration for imagevault: viper
// defaults, logging setup, and the shared HTTP transport.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/imagevault/imagevault/param"
)

// InitConfig registers the defaults for every known parameter, reads any
// configuration file found at $IMAGEVAULT_CONFIG (or ~/.imagevault/config.yaml),
// and configures logging.  Safe to call more than once; later calls only
// re-apply the logging settings.
func InitConfig() error {
	setDefaults()

	viper.SetEnvPrefix("IMAGEVAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile := os.Getenv("IMAGEVAULT_CONFIG"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".imagevault"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(errors.Cause(err)) {
				return errors.Wrap(err, "failed to read configuration file")
			}
		}
	}

	return setupLogging()
}

func setDefaults() {
	viper.SetDefault(param.Cache_Name.GetName(), "imagevault")
	viper.SetDefault(param.Cache_MemoryLimit.GetName(), 64*1024*1024)
	viper.SetDefault(param.Cache_DefaultLifetime.GetName(), "168h")
	viper.SetDefault(param.Cache_SweepInterval.GetName(), "120s")
	viper.SetDefault(param.Cache_ExtendOnAccess.GetName(), true)

	viper.SetDefault(param.Client_RequestTimeout.GetName(), "15s")

	viper.SetDefault(param.Logging_Level.GetName(), "info")
	viper.SetDefault(param.Logging_MaxLogSizeMB.GetName(), 100)
	viper.SetDefault(param.Logging_MaxLogBackups.GetName(), 3)

	viper.SetDefault(param.Transport_MaxIdleConns.GetName(), 30)
	viper.SetDefault(param.Transport_IdleConnTimeout.GetName(), "90s")
	viper.SetDefault(param.Transport_TLSHandshakeTimeout.GetName(), "15s")
	viper.SetDefault(param.Transport_ExpectContinueTimeout.GetName(), "1s")
	viper.SetDefault(param.Transport_ResponseHeaderTimeout.GetName(), "10s")
	viper.SetDefault(param.Transport_DialerTimeout.GetName(), "10s")
	viper.SetDefault(param.Transport_DialerKeepAlive.GetName(), "30s")

	if param.Cache_DataLocation.GetString() == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		viper.SetDefault(param.Cache_DataLocation.GetName(), filepath.Join(base, "imagevault"))
	}
}

func setupLogging() error {
	level, err := log.ParseLevel(param.Logging_Level.GetString())
	if err != nil {
		return errors.Wrapf(err, "unknown log level %q", param.Logging_Level.GetString())
	}
	log.SetLevel(level)

	if logLocation := param.Logging_LogLocation.GetString(); logLocation != "" {
		if err := os.MkdirAll(filepath.Dir(logLocation), 0750); err != nil {
			return errors.Wrap(err, "failed to create the log file's directory")
		}
		log.SetOutput(&lumberjack.Logger{
			Filename:   logLocation,
			MaxSize:    param.Logging_MaxLogSizeMB.GetInt(),
			MaxBackups: param.Logging_MaxLogBackups.GetInt(),
		})
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:          true,
			DisableColors:          true,
			DisableLevelTruncation: true,
		})
	}
	return nil
}

// ResetConfig restores viper to a pristine state and re-applies the
// defaults.  Intended for unit tests.
func ResetConfig() {
	viper.Reset()
	setDefaults()
	ResetTransport()
}
