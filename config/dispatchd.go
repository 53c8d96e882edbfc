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
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lindb/common/pkg/logger"
	"github.com/lindb/common/pkg/ltoml"
)

// DefaultTokenPattern mirrors the source's default token_regex.
const DefaultTokenPattern = `^[A-Za-z0-9]{10,}$`

// Dispatchd is the runtime configuration for the dispatch server, a flat
// key/value config: every field except Logging is a top-level key in both
// the JSON and INI representations. Logging has no INI key; in JSON it is a
// nested "Logging" object.
type Dispatchd struct {
	Port    int  `json:"port" ini:"port" toml:"port" env:"PORT"`
	SSLPort int  `json:"ssl_port" ini:"ssl_port" toml:"ssl-port" env:"SSL_PORT"`
	UseSSL  bool `json:"use_ssl" ini:"use_ssl" toml:"use-ssl" env:"USE_SSL"`
	SSLCert string `json:"ssl_cert" ini:"ssl_cert" toml:"ssl-cert" env:"SSL_CERT"`
	SSLKey  string `json:"ssl_key" ini:"ssl_key" toml:"ssl-key" env:"SSL_KEY"`

	MaxMessageSize  int `json:"max_message_size" ini:"max_message_size" toml:"max-message-size" env:"MAX_MESSAGE_SIZE"`
	MaxDatabaseSize int `json:"max_database_size" ini:"max_database_size" toml:"max-database-size" env:"MAX_DATABASE_SIZE"`

	MaxResultAge           ltoml.Duration `json:"max_result_age" ini:"max_result_age" toml:"max-result-age" env:"MAX_RESULT_AGE"`
	MaxServiceRunTime      ltoml.Duration `json:"max_service_run_time" ini:"max_service_run_time" toml:"max-service-run-time" env:"MAX_SERVICE_RUN_TIME"`
	ServiceStartTimeout    ltoml.Duration `json:"service_start_timeout" ini:"service_start_timeout" toml:"service-start-timeout" env:"SERVICE_START_TIMEOUT"`
	ServiceShutdownTimeout ltoml.Duration `json:"service_shutdown_timeout" ini:"service_shutdown_timeout" toml:"service-shutdown-timeout" env:"SERVICE_SHUTDOWN_TIMEOUT"`
	TerminatorIdleCycle    ltoml.Duration `json:"terminator_idle_cycle" ini:"terminator_idle_cycle" toml:"terminator-idle-cycle" env:"TERMINATOR_IDLE_CYCLE"`
	ThProcResponseTime     ltoml.Duration `json:"th_proc_response_time" ini:"th_proc_response_time" toml:"th-proc-response-time" env:"TH_PROC_RESPONSE_TIME"`

	// HTTPWorkers mirrors the source's uvicorn_workers: GOMAXPROCS is set to
	// this value at startup so the single gin process's scheduler fans out
	// over the same number of OS threads the original spread across
	// uvicorn worker processes.
	HTTPWorkers int    `json:"http_workers" ini:"http_workers" toml:"http-workers" env:"HTTP_WORKERS"`
	ListenAddr  string `json:"listen_addr" ini:"listen_addr" toml:"listen-addr" env:"LISTEN_ADDR"`

	// IncludeDirs mirrors the source's plugin search path list. Go services
	// are registered at compile time via blank import rather than discovered
	// from a directory at startup, so this is carried for config
	// compatibility but not read by the server.
	IncludeDirs []string `json:"include_dirs" ini:"include_dirs" toml:"include-dirs" env:"INCLUDE_DIRS" envSeparator:","`
	// Services names the registered services to activate. Empty means every
	// blank-imported service's factory is activated.
	Services []string `json:"services" ini:"services" toml:"services" env:"SERVICES" envSeparator:","`

	TokensPath  string `json:"tokens_path" ini:"tokens_path" toml:"tokens-path" env:"TOKENS_PATH"`
	TokenRegex  string `json:"token_regex" ini:"token_regex" toml:"token-regex" env:"TOKEN_REGEX"`

	KeySensitivity bool `json:"key_sensitivity" ini:"key_sensitivity" toml:"key-sensitivity" env:"KEY_SENSITIVITY"`
	SharedLogger   bool `json:"shared_logger" ini:"shared_logger" toml:"shared-logger" env:"SHARED_LOGGER"`

	DisableNameGroups      bool `json:"disable_name_groups" ini:"disable_name_groups" toml:"disable-name-groups" env:"DISABLE_NAME_GROUPS"`
	DisableAllGroups       bool `json:"disable_all_groups" ini:"disable_all_groups" toml:"disable-all-groups" env:"DISABLE_ALL_GROUPS"`
	DisableConfigEndpoints bool `json:"disable_config_endpoints" ini:"disable_config_endpoints" toml:"disable-config-endpoints" env:"DISABLE_CONFIG_ENDPOINTS"`

	BypassUserAuth  bool `json:"bypass_user_auth" ini:"bypass_user_auth" toml:"bypass-user-auth" env:"BYPASS_USER_AUTH"`
	BypassAdminAuth bool `json:"bypass_admin_auth" ini:"bypass_admin_auth" toml:"bypass-admin-auth" env:"BYPASS_ADMIN_AUTH"`

	TokensBackups   bool `json:"tokens_backups" ini:"tokens_backups" toml:"tokens-backups" env:"TOKENS_BACKUPS"`
	ServeWebClient  bool `json:"serve_web_client" ini:"serve_web_client" toml:"serve-web-client" env:"SERVE_WEB_CLIENT"`

	AllowHeaderToken    bool `json:"allow_header_token" ini:"allow_header_token" toml:"allow-header-token" env:"ALLOW_HEADER_TOKEN"`
	AllowParameterToken bool `json:"allow_parameter_token" ini:"allow_parameter_token" toml:"allow-parameter-token" env:"ALLOW_PARAMETER_TOKEN"`
	AllowCookieToken    bool `json:"allow_cookie_token" ini:"allow_cookie_token" toml:"allow-cookie-token" env:"ALLOW_COOKIE_TOKEN"`

	Logging logger.Setting `toml:"logging" envPrefix:"LOG_"`
}

// NewDefault returns the documented default configuration, matching the
// source's class-level defaults.
func NewDefault() *Dispatchd {
	return &Dispatchd{
		Port:                   80,
		SSLPort:                443,
		SSLCert:                filepath.Join("settings", "cert", "localhost.crt"),
		SSLKey:                 filepath.Join("settings", "cert", "localhost.key"),
		MaxMessageSize:         64,
		MaxDatabaseSize:        10000,
		MaxResultAge:           ltoml.Duration(30 * time.Minute),
		MaxServiceRunTime:      ltoml.Duration(120 * time.Second),
		ServiceStartTimeout:    ltoml.Duration(3 * time.Second),
		ServiceShutdownTimeout: ltoml.Duration(3 * time.Second),
		TerminatorIdleCycle:    ltoml.Duration(time.Second),
		ThProcResponseTime:     ltoml.Duration(500 * time.Millisecond),
		HTTPWorkers:            1,
		ListenAddr:             "0.0.0.0",
		IncludeDirs:            []string{"settings"},
		Services:               nil,
		TokensPath:             filepath.Join("settings", "tokens.ini"),
		TokenRegex:             DefaultTokenPattern,
		SharedLogger:           true,
		DisableNameGroups:      true,
		DisableAllGroups:       true,
		TokensBackups:          true,
		ServeWebClient:         true,
		AllowHeaderToken:       true,
		AllowParameterToken:    true,
		AllowCookieToken:       true,
		Logging:                *logger.NewDefaultSetting(),
	}
}

// TOML returns a fully commented default document, one per-field comment
// block followed by its `key = value` line.
func (c *Dispatchd) TOML() string {
	return fmt.Sprintf(`
## dispatchd server configuration
## Port on which the server listens.
## Default: %d
port = %d
## Port on which the server listens when use-ssl is true.
## Default: %d
ssl-port = %d
## Start the server with TLS on ssl-port. Certificate/key must already exist.
## Default: %v
use-ssl = %v
## Maximum size (bytes) of a single request payload.
## Default: %d
max-message-size = %d
## Maximum number of cached results kept per service.
## Default: %d
max-database-size = %d
## How long a cached result stays valid before eviction.
## Default: %s
max-result-age = "%s"
## Ceiling on a single service run, past which the garbage collector treats
## the request as abandoned.
## Default: %s
max-service-run-time = "%s"
## Timeout waiting for a service's start() hook.
## Default: %s
service-start-timeout = "%s"
## Timeout waiting for a service's shutdown() hook.
## Default: %s
service-shutdown-timeout = "%s"
## Sleep interval between supervisor idle cycles.
## Default: %s
terminator-idle-cycle = "%s"
## Grace period allotted for a worker thread/process to react to a signal.
## Default: %s
th-proc-response-time = "%s"
## Number of OS threads (GOMAXPROCS) the HTTP server is allowed to use.
## Default: %d
http-workers = %d
## Address the HTTP server listens on.
## Default: %q
listen-addr = %q
## Path to the token store file (JSON or INI, by extension).
## Default: %q
tokens-path = %q
## Regular expression every token must match. Empty disables validation.
## Default: %q
token-regex = %q
%s`,
		c.Port, c.Port,
		c.SSLPort, c.SSLPort,
		c.UseSSL, c.UseSSL,
		c.MaxMessageSize, c.MaxMessageSize,
		c.MaxDatabaseSize, c.MaxDatabaseSize,
		c.MaxResultAge.String(), c.MaxResultAge.String(),
		c.MaxServiceRunTime.String(), c.MaxServiceRunTime.String(),
		c.ServiceStartTimeout.String(), c.ServiceStartTimeout.String(),
		c.ServiceShutdownTimeout.String(), c.ServiceShutdownTimeout.String(),
		c.TerminatorIdleCycle.String(), c.TerminatorIdleCycle.String(),
		c.ThProcResponseTime.String(), c.ThProcResponseTime.String(),
		c.HTTPWorkers, c.HTTPWorkers,
		c.ListenAddr, c.ListenAddr,
		c.TokensPath, c.TokensPath,
		c.TokenRegex, c.TokenRegex,
		c.Logging.TOML("DISPATCHD"),
	)
}

// Validate enforces the non-negative-numbers and sane-range rules the
// source applies after loading a user config.
func (c *Dispatchd) Validate() error {
	if c.Port < 0 || c.Port > 65535 || c.SSLPort < 0 || c.SSLPort > 65535 {
		return fmt.Errorf("config: invalid port: %d or ssl_port: %d", c.Port, c.SSLPort)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("config: max_message_size cannot be negative")
	}
	if c.MaxDatabaseSize < 0 {
		return fmt.Errorf("config: max_database_size cannot be negative")
	}
	if time.Duration(c.MaxResultAge) < 0 {
		return fmt.Errorf("config: max_result_age cannot be negative")
	}
	if time.Duration(c.MaxServiceRunTime) < 10*time.Second {
		return fmt.Errorf("config: max_service_run_time cannot be less than 10s")
	}
	if time.Duration(c.ServiceStartTimeout) < time.Second || time.Duration(c.ServiceShutdownTimeout) < time.Second {
		return fmt.Errorf("config: service_start_timeout and service_shutdown_timeout cannot be less than 1s")
	}
	if time.Duration(c.TerminatorIdleCycle) < 0 || time.Duration(c.ThProcResponseTime) < 0 {
		return fmt.Errorf("config: terminator_idle_cycle and th_proc_response_time cannot be negative")
	}
	if c.HTTPWorkers < 0 {
		return fmt.Errorf("config: http_workers cannot be negative")
	}
	if c.TokenRegex != "" {
		if _, err := regexp.Compile(c.TokenRegex); err != nil {
			return fmt.Errorf("config: invalid token_regex: %w", err)
		}
	}
	if !c.AllowHeaderToken && !c.AllowParameterToken && !c.AllowCookieToken && !c.BypassUserAuth {
		return fmt.Errorf("config: all token transports are disabled and user auth is not bypassed; no client could ever authenticate")
	}
	for i, svc := range c.Services {
		c.Services[i] = strings.TrimSuffix(svc, ".py")
	}
	return nil
}
