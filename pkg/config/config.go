// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"encoding/json"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/log"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"go.uber.org/zap"
)

// PoolType selects the worker pool implementation backing a group.
type PoolType string

// Pool types recognized by a group.
const (
	// PoolTypeForkJoin is a work-stealing pool with per-worker run queues.
	PoolTypeForkJoin PoolType = "forkjoin"
	// PoolTypeFixed is a fixed-size pool with round-robin dispatch.
	PoolTypeFixed PoolType = "fixed"
	// PoolTypeCached grows on demand and reaps idle workers.
	PoolTypeCached PoolType = "cached"
)

// GroupConfig holds the knobs recognized by a group.
type GroupConfig struct {
	// Name labels the group in logs and metrics. A random name is generated
	// when empty.
	Name string `toml:"name" json:"name"`
	// PoolType is one of forkjoin, fixed or cached.
	PoolType PoolType `toml:"pool-type" json:"pool-type"`
	// PoolSize is the number of workers. Zero means one worker per CPU.
	// It is ignored by cached pools.
	PoolSize int `toml:"pool-size" json:"pool-size"`
	// Daemon pools do not delay group shutdown for in-flight work.
	Daemon bool `toml:"daemon" json:"daemon"`
	// FairDefault makes actors created from the group release their worker
	// after every message by default.
	FairDefault bool `toml:"fair-default" json:"fair-default"`
}

// GetDefaultGroupConfig returns the default group configuration.
func GetDefaultGroupConfig() *GroupConfig {
	return &GroupConfig{
		PoolType:    PoolTypeForkJoin,
		PoolSize:    0,
		Daemon:      true,
		FairDefault: false,
	}
}

// Clone returns a deep copy of the configuration.
func (c *GroupConfig) Clone() *GroupConfig {
	clone := *c
	return &clone
}

// String implements fmt.Stringer.
func (c *GroupConfig) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		log.Error("marshal group config to json failed", zap.Error(err))
	}
	return string(data)
}

// ValidateAndAdjust validates the configuration and fills in defaults.
func (c *GroupConfig) ValidateAndAdjust() error {
	switch c.PoolType {
	case PoolTypeForkJoin, PoolTypeFixed, PoolTypeCached:
	case "":
		c.PoolType = PoolTypeForkJoin
	default:
		return cerror.ErrConfigInvalid.GenWithStackByArgs(
			"unknown pool type " + string(c.PoolType))
	}
	if c.PoolSize < 0 {
		return cerror.ErrConfigInvalid.GenWithStackByArgs("pool size must not be negative")
	}
	if c.PoolSize == 0 {
		c.PoolSize = runtime.NumCPU()
	}
	return nil
}

// DecodeToml unmarshals the given TOML document into the configuration.
// Unknown keys are rejected.
func (c *GroupConfig) DecodeToml(data string) error {
	meta, err := toml.Decode(data, c)
	if err != nil {
		return cerror.WrapError(cerror.ErrConfigInvalid, err, err.Error())
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cerror.ErrConfigInvalid.GenWithStackByArgs(
			"unknown configuration key " + undecoded[0].String())
	}
	return nil
}
