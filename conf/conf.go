// Configuration Specification and Management
//
// Copyright (c) 2021, 2022  Philip Kaludercic
//
// This file is part of go-kgp.
//
// go-kgp is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-kgp is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-kgp. If not, see
// <http://www.gnu.org/licenses/>

package conf

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Conf is the process-wide configuration, populated from environment
// variables (the live service has no config file: every knob it needs
// is an ELO_CALCULATOR_* variable per the deployment contract).
type Conf struct {
	Log   *log.Logger
	Debug *log.Logger
	Ctx   context.Context
	Kill  context.CancelFunc

	// HTTP/WS listener
	HTTPPort uint

	// Session token configuration
	SecretKey      string
	Algorithm      string
	ExpiryMinutes  int

	// Admin back-office credentials
	AdminUsername string
	AdminPassword string

	// Elo tabulation
	StartingElo       int
	KParameterCeiling int
	KParameterFloor   int

	// Record store
	DatabaseFile string
	Testing      bool

	// Host-connect sentinel window
	SentinelTimeout time.Duration

	// Internal state
	man []Manager
	run bool
}

var defaultConfig = Conf{
	Log:   log.Default(),
	Debug: log.New(io.Discard, "[debug] ", log.Ltime|log.Lshortfile|log.Lmicroseconds),

	HTTPPort: 8080,

	Algorithm:     "HS256",
	ExpiryMinutes: 1440,

	AdminUsername: "admin",

	StartingElo:       1200,
	KParameterCeiling: 512,
	KParameterFloor:   16,

	DatabaseFile: "elo.db",

	SentinelTimeout: 60 * time.Second,
}

// Load reads configuration from the environment, falling back to the
// defaults above for anything unset. SecretKey and AdminPassword have
// no sane default and are left empty if unset; callers that require
// them (cmd/server) must check and fail fast.
func Load() *Conf {
	v := viper.New()
	v.SetEnvPrefix("ELO_CALCULATOR")
	v.AutomaticEnv()
	_ = v.BindEnv("secret_key")
	_ = v.BindEnv("algorithm")
	_ = v.BindEnv("expiry_minutes")
	_ = v.BindEnv("admin_username")
	_ = v.BindEnv("admin_password")
	_ = v.BindEnv("starting_elo")
	_ = v.BindEnv("k_parameter_ceiling")
	_ = v.BindEnv("k_parameter_floor")
	_ = v.BindEnv("http_port")
	_ = v.BindEnv("database_file")

	testing := viper.New()
	testing.AutomaticEnv()
	_ = testing.BindEnv("TESTING")

	c := defaultConfig

	if s := v.GetString("secret_key"); s != "" {
		c.SecretKey = s
	}
	if s := v.GetString("algorithm"); s != "" {
		c.Algorithm = s
	}
	if n := v.GetInt("expiry_minutes"); n != 0 {
		c.ExpiryMinutes = n
	}
	if s := v.GetString("admin_username"); s != "" {
		c.AdminUsername = s
	}
	c.AdminPassword = v.GetString("admin_password")
	if n := v.GetInt("starting_elo"); n != 0 {
		c.StartingElo = n
	}
	if n := v.GetInt("k_parameter_ceiling"); n != 0 {
		c.KParameterCeiling = n
	}
	if n := v.GetInt("k_parameter_floor"); n != 0 {
		c.KParameterFloor = n
	}
	if n := v.GetUint("http_port"); n != 0 {
		c.HTTPPort = n
	}
	if s := v.GetString("database_file"); s != "" {
		c.DatabaseFile = s
	}
	c.Testing = testing.GetBool("TESTING")
	if c.Testing {
		c.DatabaseFile = ":memory:"
	}

	c.Ctx, c.Kill = context.WithCancel(context.Background())
	return &c
}

// dumpable is the TOML-shaped projection of Conf that Dump encodes.
// Secrets are redacted rather than omitted so the shape of the
// config is still visible to an operator comparing deployments.
type dumpable struct {
	HTTPPort uint `toml:"http_port"`

	Algorithm     string `toml:"algorithm"`
	ExpiryMinutes int    `toml:"expiry_minutes"`

	AdminUsername string `toml:"admin_username"`
	AdminPassword string `toml:"admin_password"`
	SecretKey     string `toml:"secret_key"`

	StartingElo       int `toml:"starting_elo"`
	KParameterCeiling int `toml:"k_parameter_ceiling"`
	KParameterFloor   int `toml:"k_parameter_floor"`

	DatabaseFile string `toml:"database_file"`
	Testing      bool   `toml:"testing"`
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}

// Dump writes the resolved, non-secret configuration for operators
// troubleshooting a deployment, in the same TOML format the original
// go-kgp server used for its --dump-config flag.
func (c *Conf) Dump(wr io.Writer) error {
	d := dumpable{
		HTTPPort:          c.HTTPPort,
		Algorithm:         c.Algorithm,
		ExpiryMinutes:     c.ExpiryMinutes,
		AdminUsername:     c.AdminUsername,
		AdminPassword:     redact(c.AdminPassword),
		SecretKey:         redact(c.SecretKey),
		StartingElo:       c.StartingElo,
		KParameterCeiling: c.KParameterCeiling,
		KParameterFloor:   c.KParameterFloor,
		DatabaseFile:      c.DatabaseFile,
		Testing:           c.Testing,
	}
	return toml.NewEncoder(wr).Encode(d)
}
