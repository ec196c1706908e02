package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/bates-must-flow/internal/cli"
	"github.com/Veraticus/bates-must-flow/internal/config"
	"github.com/Veraticus/bates-must-flow/internal/googleauth"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to external services",
	}
	cmd.AddCommand(authGoogleCmd())
	return cmd
}

func authGoogleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "google",
		Short: "Obtain a Google refresh token for mail and the run log",
		Long: `Run the OAuth2 consent flow for the Gmail send and Sheets scopes.

The client ID and secret come from --client-id/--client-secret or the
notify.client_id and notify.client_secret settings. Put the printed refresh
token in notify.refresh_token and sheets.refresh_token.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID, _ := cmd.Flags().GetString("client-id")
			clientSecret, _ := cmd.Flags().GetString("client-secret")
			addr, _ := cmd.Flags().GetString("addr")
			save, _ := cmd.Flags().GetString("save")

			nc := config.LoadNotifyConfig(viper.GetViper())
			if clientID == "" {
				clientID = nc.ClientID
			}
			if clientSecret == "" {
				clientSecret = nc.ClientSecret
			}

			out := cmd.OutOrStdout()
			token, err := googleauth.Authorize(cmd.Context(), googleauth.ConsentConfig{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				Addr:         addr,
				Scopes:       []string{gmail.GmailSendScope, sheets.SpreadsheetsScope},
			}, func(url string) {
				fmt.Fprintln(out, cli.FormatInfo("Visit this URL to authorize bates:"))
				fmt.Fprintln(out, url)
			})
			if err != nil {
				return err
			}

			if save != "" {
				path := config.ExpandPath(save)
				if err := googleauth.SaveToken(afero.NewOsFs(), path, token); err != nil {
					return err
				}
				fmt.Fprintln(out, cli.FormatSuccess("Token saved to "+path))
			}
			fmt.Fprintln(out, cli.FormatSuccess("Refresh token: "+token.RefreshToken))
			return nil
		},
	}
	cmd.Flags().String("client-id", "", "OAuth2 client ID")
	cmd.Flags().String("client-secret", "", "OAuth2 client secret")
	cmd.Flags().String("addr", "localhost:8085", "loopback address for the OAuth2 callback")
	cmd.Flags().String("save", "", "also write the full token as JSON to this path")
	return cmd
}
