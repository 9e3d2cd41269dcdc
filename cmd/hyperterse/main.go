/*
 * Copyright 2022 RapidLoop, Inc.
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
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rapidloop/hyperterse"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

var (
	flagset   = pflag.NewFlagSet("", pflag.ContinueOnError)
	fversion  = flagset.BoolP("version", "v", false, "show version and exit")
	fcheck    = flagset.BoolP("check", "c", false, "only check if the config file is valid")
	fport     = flagset.Uint16P("port", "p", 0, "override the server port from the config file")
	fdev      = flagset.BoolP("dev", "d", false, "watch the config file and hot-reload on change")
	fdebounce = flagset.Uint("debounce", 500, "debounce window for hot reload, in milliseconds")
	flog      = flagset.StringP("logtype", "l", "text", "print logs in 'text' (default) or 'json' format")
	fnocolor  = flagset.Bool("no-color", false, "do not colorize log output")
	fenv      = flagset.String("env-file", "", "load environment variables from this file before parsing the config")
)

var version string // set during build

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: hyperterse [options] config-file
hyperterse turns a declarative config file into JSON HTTP endpoints and
MCP tools over your databases and caches.

Options:
`)
	flagset.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
(c) RapidLoop, Inc. 2022 * https://rapidrows.io
`)
}

func main() {
	flagset.Usage = usage
	if err := flagset.Parse(os.Args[1:]); err == pflag.ErrHelp {
		return
	} else if err != nil || (!*fversion && flagset.NArg() != 1) || (*flog != "text" && *flog != "json") {
		usage()
		os.Exit(1)
	}

	log.SetFlags(0)
	if *fversion {
		fmt.Printf("hyperterse v%s\n(c) RapidLoop, Inc. 2022 * https://rapidrows.io\n", version)
		return
	}
	os.Exit(realmain())
}

func realmain() int {
	configPath := flagset.Arg(0)

	if *fenv != "" {
		if err := godotenv.Load(*fenv); err != nil {
			log.Printf("hyperterse: failed to load env file %s: %v", *fenv, err)
			return 1
		}
	} else {
		// best-effort: a .env file next to the working directory is
		// common in dev but not required in production.
		_ = godotenv.Load()
	}

	model, err := hyperterse.ParseFile(configPath, true)
	if err != nil {
		log.Printf("hyperterse: failed to parse config: %v", err)
		return 1
	}

	if *fcheck {
		var w, e int
		for _, r := range model.Validate() {
			if r.Warn {
				fmt.Print("warning: ")
				w++
			} else {
				fmt.Print("error: ")
				e++
			}
			fmt.Println(r.Message)
		}
		if w > 0 || e > 0 {
			fmt.Printf("\n%s: %d error(s), %d warning(s)\n", configPath, e, w)
		}
		if e > 0 {
			return 2
		}
		return 0
	}

	if err := model.IsValid(); err != nil {
		log.Printf("hyperterse: invalid config: %v", err)
		return 1
	}

	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	var logger zerolog.Logger
	if *flog == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		out := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05.999",
			NoColor:    !isatty.IsTerminal(os.Stdout.Fd()) || *fnocolor,
		}
		logger = zerolog.New(out).With().Timestamp().Logger()
	}

	rti := hyperterse.RuntimeInterface{
		Logger:         &logger,
		DevMode:        *fdev,
		DebounceWindow: time.Duration(*fdebounce) * time.Millisecond,
		PortOverride:   *fport,
	}

	gw, err := hyperterse.NewGateway(configPath, model, &rti)
	if err != nil {
		log.Printf("hyperterse: failed to create gateway: %v", err)
		return 1
	}
	if err := gw.Start(); err != nil {
		log.Printf("hyperterse: failed to start gateway: %v", err)
		return 1
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	signal.Stop(ch)
	close(ch)

	if err := gw.Stop(time.Minute); err != nil {
		log.Printf("hyperterse: warning: failed to stop gateway: %v", err)
	}

	return 0
}
