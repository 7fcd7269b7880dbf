package cli

import (
	"errors"

	"github.com/spf13/cobra"

	outfit "github.com/Mallikarjun30/OutfitSuggestion"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View and edit your profile",
	Long: `Profile commands.

Examples:
  outfitctl profile update --name "Ada L." --skin-tone olive
  outfitctl profile refresh`,
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields",
	Long: `Update name, skin tone or gender. Only the flags you pass are sent.
Email cannot be changed.`,
	Args: cobra.NoArgs,
	RunE: runProfileUpdate,
}

var profileRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the profile from the backend",
	Args:  cobra.NoArgs,
	RunE:  runProfileRefresh,
}

func init() {
	profileUpdateCmd.Flags().String("name", "", "display name")
	profileUpdateCmd.Flags().String("skin-tone", "", "skin tone")
	profileUpdateCmd.Flags().String("gender", "", "gender")

	profileCmd.AddCommand(profileUpdateCmd)
	profileCmd.AddCommand(profileRefreshCmd)

	rootCmd.AddCommand(profileCmd)
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	var upd outfit.ProfileUpdate
	changed := false
	for flag, dst := range map[string]**string{
		"name":      &upd.Name,
		"skin-tone": &upd.SkinTone,
		"gender":    &upd.Gender,
	} {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetString(flag)
			*dst = &v
			changed = true
		}
	}
	if !changed {
		return errors.New("nothing to update: pass --name, --skin-tone or --gender")
	}

	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	user, err := client.Session.UpdateProfile(cmd.Context(), upd)
	if err != nil {
		return err
	}
	return showUser(user)
}

func runProfileRefresh(cmd *cobra.Command, args []string) error {
	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	user, err := client.Session.RefreshProfile(cmd.Context())
	if err != nil {
		return err
	}
	return showUser(user)
}

func showUser(u *outfit.User) error {
	if structured() {
		return printStructured(u)
	}
	printUser(u)
	return nil
}
