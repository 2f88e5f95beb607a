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

// Package param provides typed accessors for imagevault's viper-backed
// configuration parameters.  Defaults for every parameter are registered
// by config.InitConfig; the accessors read the global viper instance so
// tests can override individual values with viper.Set.
package param

import (
	"time"

	"github.com/spf13/viper"
)

type StringParam struct {
	name string
}

func (p StringParam) GetName() string {
	return p.name
}

func (p StringParam) GetString() string {
	return viper.GetString(p.name)
}

type BoolParam struct {
	name string
}

func (p BoolParam) GetName() string {
	return p.name
}

func (p BoolParam) GetBool() bool {
	return viper.GetBool(p.name)
}

type IntParam struct {
	name string
}

func (p IntParam) GetName() string {
	return p.name
}

func (p IntParam) GetInt() int {
	return viper.GetInt(p.name)
}

func (p IntParam) GetInt64() int64 {
	return viper.GetInt64(p.name)
}

type DurationParam struct {
	name string
}

func (p DurationParam) GetName() string {
	return p.name
}

func (p DurationParam) GetDuration() time.Duration {
	return viper.GetDuration(p.name)
}

var (
	// Cache parameters
	Cache_DataLocation    = StringParam{"Cache.DataLocation"}
	Cache_Name            = StringParam{"Cache.Name"}
	Cache_MemoryLimit     = IntParam{"Cache.MemoryLimit"}
	Cache_DefaultLifetime = DurationParam{"Cache.DefaultLifetime"}
	Cache_SweepInterval   = DurationParam{"Cache.SweepInterval"}
	Cache_ExtendOnAccess  = BoolParam{"Cache.ExtendOnAccess"}

	// Client parameters
	Client_RequestTimeout = DurationParam{"Client.RequestTimeout"}

	// Logging parameters
	Logging_Level         = StringParam{"Logging.Level"}
	Logging_LogLocation   = StringParam{"Logging.LogLocation"}
	Logging_MaxLogSizeMB  = IntParam{"Logging.MaxLogSizeMB"}
	Logging_MaxLogBackups = IntParam{"Logging.MaxLogBackups"}

	// Transport parameters
	Transport_MaxIdleConns          = IntParam{"Transport.MaxIdleConns"}
	Transport_IdleConnTimeout       = DurationParam{"Transport.IdleConnTimeout"}
	Transport_TLSHandshakeTimeout   = DurationParam{"Transport.TLSHandshakeTimeout"}
	Transport_ExpectContinueTimeout = DurationParam{"Transport.ExpectContinueTimeout"}
	Transport_ResponseHeaderTimeout = DurationParam{"Transport.ResponseHeaderTimeout"}
	Transport_DialerTimeout         = DurationParam{"Transport.DialerTimeout"}
	Transport_DialerKeepAlive       = DurationParam{"Transport.DialerKeepAlive"}
	TLSSkipVerify                   = BoolParam{"TLSSkipVerify"}
)
