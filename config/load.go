// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/lindb/common/pkg/ltoml"
)

// strictJSON rejects unknown fields, matching the source's "Invalid key"
// ConfigError on any key not present in the default config.
var strictJSON = jsoniter.Config{DisallowUnknownFields: true}.Froze()

// Load reads a JSON or INI config file (dispatched by extension) over top
// of NewDefault(), validates it, and returns the result. An empty path
// returns NewDefault() unchanged.
func Load(path string) (*Dispatchd, error) {
	cfg := NewDefault()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := strictJSON.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".ini":
		if err := loadINIInto(cfg, string(data)); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported config file extension %q", filepath.Ext(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadINIInto applies a flat "key = value" INI document onto cfg,
// rejecting any key cfg does not declare an `ini` tag for.
func loadINIInto(cfg *Dispatchd, data string) error {
	fields := iniFieldSetters(cfg)
	scanner := bufio.NewScanner(strings.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return fmt.Errorf("invalid line %d: %q", lineNo, line)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		setter, ok := fields[key]
		if !ok {
			return fmt.Errorf("invalid key: %q on line %d", key, lineNo)
		}
		if err := setter(value); err != nil {
			return fmt.Errorf("invalid value for %q on line %d: %w", key, lineNo, err)
		}
	}
	return scanner.Err()
}

// iniFieldSetters maps every flat config key to a function that parses an
// INI value string and assigns it onto cfg. Kept as an explicit table
// rather than reflection over the `ini` struct tags, since half the
// fields need bespoke parsing (durations, comma lists) the generic
// decoder in the JSON path doesn't need.
func iniFieldSetters(cfg *Dispatchd) map[string]func(string) error {
	return map[string]func(string) error{
		"port":                      intSetter(&cfg.Port),
		"ssl_port":                  intSetter(&cfg.SSLPort),
		"use_ssl":                   boolSetter(&cfg.UseSSL),
		"ssl_cert":                  stringSetter(&cfg.SSLCert),
		"ssl_key":                   stringSetter(&cfg.SSLKey),
		"max_message_size":          intSetter(&cfg.MaxMessageSize),
		"max_database_size":         intSetter(&cfg.MaxDatabaseSize),
		"max_result_age":            durationSetter(&cfg.MaxResultAge),
		"max_service_run_time":      durationSetter(&cfg.MaxServiceRunTime),
		"service_start_timeout":     durationSetter(&cfg.ServiceStartTimeout),
		"service_shutdown_timeout":  durationSetter(&cfg.ServiceShutdownTimeout),
		"terminator_idle_cycle":     durationSetter(&cfg.TerminatorIdleCycle),
		"th_proc_response_time":     durationSetter(&cfg.ThProcResponseTime),
		"http_workers":              intSetter(&cfg.HTTPWorkers),
		"listen_addr":               stringSetter(&cfg.ListenAddr),
		"include_dirs":              listSetter(&cfg.IncludeDirs),
		"services":                  listSetter(&cfg.Services),
		"tokens_path":               stringSetter(&cfg.TokensPath),
		"token_regex":               stringSetter(&cfg.TokenRegex),
		"key_sensitivity":           boolSetter(&cfg.KeySensitivity),
		"shared_logger":             boolSetter(&cfg.SharedLogger),
		"disable_name_groups":       boolSetter(&cfg.DisableNameGroups),
		"disable_all_groups":        boolSetter(&cfg.DisableAllGroups),
		"disable_config_endpoints":  boolSetter(&cfg.DisableConfigEndpoints),
		"bypass_user_auth":          boolSetter(&cfg.BypassUserAuth),
		"bypass_admin_auth":         boolSetter(&cfg.BypassAdminAuth),
		"tokens_backups":            boolSetter(&cfg.TokensBackups),
		"serve_web_client":          boolSetter(&cfg.ServeWebClient),
		"allow_header_token":        boolSetter(&cfg.AllowHeaderToken),
		"allow_parameter_token":     boolSetter(&cfg.AllowParameterToken),
		"allow_cookie_token":        boolSetter(&cfg.AllowCookieToken),
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func stringSetter(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func listSetter(dst *[]string) func(string) error {
	return func(v string) error {
		*dst = strings.Fields(v)
		return nil
	}
}

func durationSetter(dst *ltoml.Duration) func(string) error {
	return func(v string) error {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = ltoml.Duration(time.Duration(n) * time.Second)
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = ltoml.Duration(d)
		return nil
	}
}
