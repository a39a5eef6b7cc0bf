package main

import (
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
		Use:           "undo_match",
		Short:         "Undo the most recently recorded match",
		Args:          cobra.ExactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiURL := v.GetString("api_url")
			resp, err := http.Post(strings.TrimSuffix(apiURL, "/")+"/api/undo", "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("unexpected status %d", resp.StatusCode)
			}
			fmt.Println("undid last match")
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
