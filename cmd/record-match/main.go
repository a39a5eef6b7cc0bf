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

	var winner, loser string

	cmd := &cobra.Command{
		Use:           "record_match --winner <name> --loser <name>",
		Short:         "Record the outcome of a completed match",
		Args:          cobra.ExactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if winner == "" || loser == "" {
				return fmt.Errorf("both --winner and --loser are required")
			}
			apiURL := v.GetString("api_url")
			body, err := json.Marshal(map[string]string{"winner": winner, "loser": loser})
			if err != nil {
				return err
			}
			resp, err := http.Post(strings.TrimSuffix(apiURL, "/")+"/api/match", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			fmt.Printf("recorded match: %s beat %s\n", winner, loser)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVar(&winner, "winner", "", "name of the winning player")
	fs.StringVar(&loser, "loser", "", "name of the losing player")
	fs.String("api-url", "http://localhost:8080", "base URL of the HTTP API (env: ELO_CALCULATOR_API_URL)")
	_ = v.BindPFlag("api_url", fs.Lookup("api-url"))

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
