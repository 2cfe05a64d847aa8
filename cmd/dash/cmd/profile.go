package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hongminglow/all-in-dash/internal/app"
	"github.com/hongminglow/all-in-dash/internal/models"
)

type preferenceFlags struct {
	investorType string
	contentTypes []string
	assets       []string
}

func (f *preferenceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.investorType, "investor-type", "", "one of: "+strings.Join(models.InvestorTypes, ", "))
	cmd.Flags().StringSliceVar(&f.contentTypes, "content-type", nil, "repeatable; one of: "+strings.Join(models.ContentTypes, ", "))
	cmd.Flags().StringSliceVar(&f.assets, "asset", nil, "repeatable; e.g. "+strings.Join(models.PopularAssets[:3], ", "))
}

func (f *preferenceFlags) preferences() models.Preferences {
	return models.Preferences{Assets: f.assets, InvestorType: f.investorType, ContentTypes: f.contentTypes}
}

func newOnboardCmd(rt *runtime) *cobra.Command {
	var prefs preferenceFlags
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Answer the onboarding survey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, func(a *app.App) error {
				if !a.Session.Authenticated() {
					return errNotLoggedIn
				}
				if err := a.Account.SavePreferences(cmd.Context(), prefs.preferences()); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Preferences saved. Next: %s\n", a.Session.NextRoute())
				return err
			})
		},
	}
	prefs.bind(cmd)
	return cmd
}

func newProfileCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile and preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, func(a *app.App) error {
				if !a.Session.Authenticated() {
					return errNotLoggedIn
				}
				profile, err := a.Account.Profile(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:          %s\n", profile.Name)
				fmt.Fprintf(out, "Email:         %s\n", profile.Email)
				fmt.Fprintf(out, "Investor type: %s\n", orNone(profile.Preferences.InvestorType))
				fmt.Fprintf(out, "Content:       %s\n", orNone(strings.Join(profile.Preferences.ContentTypes, ", ")))
				_, err = fmt.Fprintf(out, "Assets:        %s\n", orNone(strings.Join(profile.Preferences.Assets, ", ")))
				return err
			})
		},
	}
	cmd.AddCommand(newProfileUpdateCmd(rt))
	return cmd
}

func newProfileUpdateCmd(rt *runtime) *cobra.Command {
	var prefs preferenceFlags
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace your preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, func(a *app.App) error {
				if !a.Session.Authenticated() {
					return errNotLoggedIn
				}
				if err := a.Account.UpdatePreferences(cmd.Context(), prefs.preferences()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Preferences updated successfully!")
				return err
			})
		},
	}
	prefs.bind(cmd)
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
