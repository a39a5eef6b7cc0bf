package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("ELO_CALCULATOR")
	v.AutomaticEnv()
	v.SetDefault("api_url", "http://localhost:8080")

	cmd := &cobra.Command{
		Use:           "add_player <name...>",
		Short:         "Register one or more new players with the live-state API",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiURL := v.GetString("api_url")
			for _, name := range args {
				if err := addPlayer(apiURL, name); err != nil {
					return fmt.Errorf("add_player %q: %w", name, err)
				}
				fmt.Printf("added player %q\n", name)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.String("api-url", "http://localhost:8080", "base URL of the HTTP API (env: ELO_CALCULATOR_API_URL)")
	_ = v.BindPFlag("api_url", fs.Lookup("api-url"))

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addPlayer(apiURL, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	resp, err := http.Post(strings.TrimSuffix(apiURL, "/")+"/api/add_player", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
