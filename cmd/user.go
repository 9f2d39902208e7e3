package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bnema/odfops/internal/application"
	"github.com/bnema/odfops/internal/domain"
)

func newUserCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the users of the session host",
	}

	cmd.AddCommand(
		newUserAddCmd(app),
		newUserListCmd(app),
	)

	return cmd
}

func newUserAddCmd(app *app) *cobra.Command {
	var add application.AddUserCommand

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := app.authService(cmd.Context())
			if err != nil {
				return err
			}

			user, err := auth.AddUser(cmd.Context(), add)
			if err != nil {
				return fmt.Errorf("add user: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", user.ID, user.Login)
			return err
		},
	}

	cmd.Flags().StringVar(&add.Login, "login", "", "login name")
	cmd.Flags().StringVar(&add.Password, "password", "", "password")
	cmd.Flags().StringVar(&add.FullName, "full-name", "", "display name shown to other members")
	cmd.Flags().StringVar(&add.Color, "color", "", "cursor color")
	cmd.Flags().StringVar(&add.ImageURL, "image-url", "", "avatar url")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

type userView struct {
	ID       domain.UserID `json:"id"`
	Login    string        `json:"login"`
	FullName string        `json:"full_name,omitempty"`
	Color    string        `json:"color,omitempty"`
	ImageURL string        `json:"image_url,omitempty"`
}

func newUserListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := app.users.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}

			views := make([]userView, 0, len(users))
			for _, user := range users {
				views = append(views, userView{
					ID:       user.ID,
					Login:    user.Login,
					FullName: user.FullName,
					Color:    user.Color,
					ImageURL: user.ImageURL,
				})
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, view := range views {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", view.ID, view.Login, view.FullName)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print users as JSON")

	return cmd
}
