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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/chillymango/elo-calculator/conf"
	"github.com/chillymango/elo-calculator/dispatch"
	"github.com/chillymango/elo-calculator/elo"
	"github.com/chillymango/elo-calculator/gateway"
	"github.com/chillymango/elo-calculator/httpapi"
	"github.com/chillymango/elo-calculator/registry"
	"github.com/chillymango/elo-calculator/session"
	"github.com/chillymango/elo-calculator/store"
	"github.com/chillymango/elo-calculator/subscription"
)

// httpManager adapts http.Server to conf.Manager.
type httpManager struct {
	srv *http.Server
}

func (m *httpManager) String() string { return fmt.Sprintf("http(%s)", m.srv.Addr) }

func (m *httpManager) Start() {
	if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("http server exited: %v", err)
	}
}

func (m *httpManager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.srv.Shutdown(ctx)
}

func main() {
	var dump bool
	flag.BoolVar(&dump, "dump-config", false, "print the resolved configuration and exit")
	flag.Parse()

	config := conf.Load()
	if dump {
		if err := config.Dump(os.Stdout); err != nil {
			log.Fatalln("failed to dump configuration:", err)
		}
		return
	}
	if config.SecretKey == "" {
		log.Fatalln("ELO_CALCULATOR_SECRET_KEY must be set")
	}
	if config.AdminPassword == "" {
		log.Fatalln("ELO_CALCULATOR_ADMIN_PASSWORD must be set")
	}

	reg := registry.New(config.SentinelTimeout)
	fabric := subscription.New(reg)
	sessions := session.New(config.SecretKey, time.Duration(config.ExpiryMinutes)*time.Minute)
	disp := dispatch.New(reg)
	gw := gateway.New(sessions, reg, fabric, disp)

	st, err := store.Open(config.DatabaseFile, config.StartingElo)
	if err != nil {
		log.Fatalln("failed to open record store:", err)
	}

	api := &httpapi.Server{
		Sessions:      sessions,
		Registry:      reg,
		Gateway:       gw,
		Store:         st,
		Tabulator:     elo.New(config.StartingElo, config.KParameterFloor, config.KParameterCeiling),
		AdminUser:     config.AdminUsername,
		AdminPassword: config.AdminPassword,
		StartingElo:   config.StartingElo,
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.HTTPPort),
		Handler: api.Router(),
	}
	config.Register(&httpManager{srv: srv})
	config.Start()

	_ = st.Close()
}
