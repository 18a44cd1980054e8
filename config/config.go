/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config defines the loginserver's on-disk configuration shape
// and its validator/v10-backed Validate, in the style of
// nabbar-golib/database/gorm.Config: plain structs carrying
// json/yaml/toml/mapstructure tags plus a `validate` tag per field,
// loaded through viper.
package config

import (
	"fmt"
	"time"

	libval "github.com/go-playground/validator/v10"

	"github.com/ridgeway-labs/sessioncore/internal/apperror"
	"github.com/ridgeway-labs/sessioncore/internal/logging"
	"github.com/ridgeway-labs/sessioncore/network/protocol"
)

const (
	ErrorValidation apperror.CodeError = iota + apperror.MinPkgConfig
	ErrorLoad
)

func init() {
	if apperror.ExistInMapMessage(apperror.MinPkgConfig) {
		panic("error code collision in package config")
	}
	apperror.RegisterIdFctMessage(apperror.MinPkgConfig, func(c apperror.CodeError) string {
		switch c {
		case ErrorValidation:
			return "config: validation failed"
		case ErrorLoad:
			return "config: failed to load"
		}
		return "config: error"
	})
}

// TransportConfig configures the listening socket and the section/reactor/
// hard-task pools sized around it (spec §4.7, §6).
type TransportConfig struct {
	Network string `mapstructure:"network" yaml:"network" json:"network" toml:"network" validate:"required,oneof=tcp tcp4 tcp6 unix"`
	Address string `mapstructure:"address" yaml:"address" json:"address" toml:"address" validate:"required"`

	SectionCount      int `mapstructure:"section_count" yaml:"section_count" json:"section_count" toml:"section_count" validate:"required,gte=1"`
	ReactorWorkers    int `mapstructure:"reactor_workers" yaml:"reactor_workers" json:"reactor_workers" toml:"reactor_workers" validate:"required,gte=1"`
	ReactorQueueDepth int `mapstructure:"reactor_queue_depth" yaml:"reactor_queue_depth" json:"reactor_queue_depth" toml:"reactor_queue_depth" validate:"required,gte=1"`
	HardTaskWorkers   int `mapstructure:"hard_task_workers" yaml:"hard_task_workers" json:"hard_task_workers" toml:"hard_task_workers" validate:"required,gte=1"`

	MaxFrameSize int `mapstructure:"max_frame_size" yaml:"max_frame_size" json:"max_frame_size" toml:"max_frame_size" validate:"required,gte=8"`
}

// ParsedNetwork normalizes Network to the protocol.Network constant
// net.Listen/net.Dial expect, the way LoggingConfig.ParsedLevel normalizes
// the logging level string.
func (t TransportConfig) ParsedNetwork() protocol.Network {
	return protocol.Parse(t.Network)
}

// DBConfig configures one named db.Pool. Field names and
// validation rules follow the external JSON schema spec §6 fixes
// exactly: host, user, database non-empty and port > 0; the DSN gorm's
// mysql driver wants is derived from these fields rather than taken as
// a raw connection string, so every deployment's config file matches
// the documented wire schema regardless of driver.
type DBConfig struct {
	Name     string `mapstructure:"name" yaml:"name" json:"name" toml:"name" validate:"required"`
	Host     string `mapstructure:"host" yaml:"host" json:"host" toml:"host" validate:"required"`
	User     string `mapstructure:"user" yaml:"user" json:"user" toml:"user" validate:"required"`
	Password string `mapstructure:"password" yaml:"password" json:"password" toml:"password"`
	Database string `mapstructure:"database" yaml:"database" json:"database" toml:"database" validate:"required"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port" toml:"port" validate:"required,gt=0"`

	ConnectionTimeoutSec int  `mapstructure:"connection_timeout" yaml:"connection_timeout" json:"connection_timeout" toml:"connection_timeout" validate:"gte=0"`
	ReadTimeoutSec       int  `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout" toml:"read_timeout" validate:"gte=0"`
	WriteTimeoutSec      int  `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout" toml:"write_timeout" validate:"gte=0"`
	AutoReconnect        bool `mapstructure:"auto_reconnect" yaml:"auto_reconnect" json:"auto_reconnect" toml:"auto_reconnect"`
	Charset              string `mapstructure:"charset" yaml:"charset" json:"charset" toml:"charset"`

	PoolMinSize                int `mapstructure:"pool_min_size" yaml:"pool_min_size" json:"pool_min_size" toml:"pool_min_size" validate:"gte=0"`
	PoolMaxSize                int `mapstructure:"pool_max_size" yaml:"pool_max_size" json:"pool_max_size" toml:"pool_max_size" validate:"required,gtefield=PoolMinSize"`
	PoolIdleTimeoutSec         int `mapstructure:"pool_idle_timeout_sec" yaml:"pool_idle_timeout_sec" json:"pool_idle_timeout_sec" toml:"pool_idle_timeout_sec" validate:"required"`
	PoolValidationIntervalSec  int `mapstructure:"pool_validation_interval_sec" yaml:"pool_validation_interval_sec" json:"pool_validation_interval_sec" toml:"pool_validation_interval_sec" validate:"required"`

	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold" yaml:"slow_query_threshold" json:"slow_query_threshold" toml:"slow_query_threshold"`
}

// DSN builds the go-sql-driver/mysql connection string gorm's mysql
// driver wants out of the documented host/user/password/database/port
// fields, folding charset and the three timeout fields into driver
// query parameters. auto_reconnect has no DSN equivalent in
// database/sql and is not read anywhere: idle connections are validated,
// and the pool is redialed back up to its minimum, by db.Pool's own
// validator regardless of this flag.
func (d DBConfig) DSN() string {
	charset := d.Charset
	if charset == "" {
		charset = "utf8mb4"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Database, charset)

	if d.ConnectionTimeoutSec > 0 {
		dsn += fmt.Sprintf("&timeout=%ds", d.ConnectionTimeoutSec)
	}
	if d.ReadTimeoutSec > 0 {
		dsn += fmt.Sprintf("&readTimeout=%ds", d.ReadTimeoutSec)
	}
	if d.WriteTimeoutSec > 0 {
		dsn += fmt.Sprintf("&writeTimeout=%ds", d.WriteTimeoutSec)
	}
	return dsn
}

// LoggingConfig configures the process-wide logging.Logger instance.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level" toml:"level" validate:"required,oneof=panic fatal error warn info debug trace"`
}

// ParsedLevel converts Level to a logging.Level, defaulting to Info for
// an unrecognized value (Validate should have already rejected those).
func (l LoggingConfig) ParsedLevel() logging.Level {
	switch l.Level {
	case "panic":
		return logging.PanicLevel
	case "fatal":
		return logging.FatalLevel
	case "error":
		return logging.ErrorLevel
	case "warn":
		return logging.WarnLevel
	case "debug":
		return logging.DebugLevel
	case "trace":
		return logging.TraceLevel
	default:
		return logging.InfoLevel
	}
}

// Config is the top-level loginserver configuration, the Go port of the
// original's scattered DBConfig/NetworkConfig globals collapsed into one
// validated, viper-loaded document.
type Config struct {
	Metrics  string          `mapstructure:"metrics_namespace" yaml:"metrics_namespace" json:"metrics_namespace" toml:"metrics_namespace" validate:"required"`
	Logging  LoggingConfig   `mapstructure:"logging" yaml:"logging" json:"logging" toml:"logging" validate:"required"`
	Listen   TransportConfig `mapstructure:"listen" yaml:"listen" json:"listen" toml:"listen" validate:"required"`
	Database []DBConfig      `mapstructure:"database" yaml:"database" json:"database" toml:"database" validate:"required,min=1,dive"`
}

// Validate runs validator/v10 over the fully-loaded config, the same
// pattern nabbar-golib/database/gorm.Config.Validate follows.
func (c *Config) Validate() apperror.Error {
	e := ErrorValidation.Error(nil)

	if err := libval.New().Struct(c); err != nil {
		if ive, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(ive)
		} else if ves, ok := err.(libval.ValidationErrors); ok {
			for _, v := range ves {
				e.Add(fmt.Errorf("config field %q failed constraint %q", v.Namespace(), v.ActualTag()))
			}
		} else {
			e.Add(err)
		}
	}

	if ue := e.Unwrap(); ue == nil {
		return nil
	}
	return e
}
