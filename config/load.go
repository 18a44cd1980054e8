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

package config

import (
	"github.com/spf13/viper"

	"github.com/ridgeway-labs/sessioncore/internal/apperror"
)

// Load reads path through viper, unmarshals it into a Config, and
// validates the result. path's extension selects viper's decoder
// (yaml/json/toml all work unmodified).
func Load(path string) (*Config, apperror.Error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, ErrorLoad.ErrorParent(err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ErrorLoad.ErrorParent(err)
	}

	if verr := cfg.Validate(); verr != nil {
		return nil, verr
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.network", "tcp")
	v.SetDefault("listen.section_count", 4)
	v.SetDefault("listen.reactor_workers", 4)
	v.SetDefault("listen.reactor_queue_depth", 1024)
	v.SetDefault("listen.hard_task_workers", 8)
	v.SetDefault("listen.max_frame_size", 65535)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics_namespace", "sessioncore")
}
