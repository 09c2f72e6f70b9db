/*
 * Copyright 2025 SteelPOS Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/steelpos/termfleet/pkg/config"
	"github.com/steelpos/termfleet/pkg/core"
	"github.com/steelpos/termfleet/pkg/core/api"
	"github.com/steelpos/termfleet/pkg/db"
	"github.com/steelpos/termfleet/pkg/lifecycle"
	"github.com/steelpos/termfleet/pkg/logger"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/termfleet/core.json", "Path to coordinator config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg core.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	coreLogger, err := lifecycle.CreateComponentLogger("core", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	var store db.Service

	if cfg.Database != nil {
		store, err = db.NewPostgres(ctx, cfg.Database, coreLogger)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
	} else {
		// No database block: run on the in-memory store. State is lost
		// on restart; suitable for development only.
		coreLogger.Warn().Msg("No database configured, using in-memory store")

		store = db.NewMemory()
	}

	coreServer := core.NewServer(&cfg, store, coreLogger)
	apiServer := api.NewAPIServer(cfg.ListenAddr, cfg.APIKey, coreServer, coreLogger)

	return lifecycle.Run(ctx, &lifecycle.Options{
		ServiceName: "termfleet-core",
		Services:    []lifecycle.Service{coreServer, apiServer},
	})
}
