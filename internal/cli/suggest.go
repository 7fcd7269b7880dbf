package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	outfit "github.com/Mallikarjun30/OutfitSuggestion"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [photo]...",
	Short: "Get outfit suggestions",
	Long: `Ask for outfit suggestions from your wardrobe. Photos of what you are
wearing are optional; without them suggestions come from the wardrobe
alone. Weather is looked up by --city, or by --lat and --lon together.

Examples:
  outfitctl suggest --city London
  outfitctl suggest --lat 51.5 --lon -0.12 --date 2024-12-24 today.jpg
  outfitctl suggest --hemisphere south --units imperial`,
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().String("city", "", "city for the weather lookup")
	suggestCmd.Flags().String("hemisphere", "", "north or south (backend default: north)")
	suggestCmd.Flags().String("units", "", "metric, imperial or standard (backend default: metric)")
	suggestCmd.Flags().String("date", "", "date to dress for, YYYY-MM-DD (default: today)")
	suggestCmd.Flags().String("gender", "", "gender")
	suggestCmd.Flags().String("skin-tone", "", "skin tone")
	suggestCmd.Flags().Float64("lat", 0, "latitude for the weather lookup")
	suggestCmd.Flags().Float64("lon", 0, "longitude for the weather lookup")

	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	params := outfit.SuggestParams{}
	params.City, _ = cmd.Flags().GetString("city")
	params.Hemisphere, _ = cmd.Flags().GetString("hemisphere")
	params.Units, _ = cmd.Flags().GetString("units")
	params.Date, _ = cmd.Flags().GetString("date")
	params.Gender, _ = cmd.Flags().GetString("gender")
	params.SkinTone, _ = cmd.Flags().GetString("skin-tone")
	if cmd.Flags().Changed("lat") {
		lat, _ := cmd.Flags().GetFloat64("lat")
		params.Lat = &lat
	}
	if cmd.Flags().Changed("lon") {
		lon, _ := cmd.Flags().GetFloat64("lon")
		params.Lon = &lon
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		params.Files = append(params.Files, outfit.File{Name: filepath.Base(path), Content: f})
	}

	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	res, err := client.Outfits.Suggest(cmd.Context(), params)
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(res)
	}
	printSuggestions(client, res)
	return nil
}

func printSuggestions(client *outfit.Client, res *outfit.Suggestions) {
	if res.Season != "" {
		fmt.Fprintf(stdout, "Season:  %s\n", res.Season)
	}
	if res.Weather != nil {
		if res.Weather.Temperature != nil {
			fmt.Fprintf(stdout, "Weather: %s, %.1f°\n", res.Weather.Condition, *res.Weather.Temperature)
		} else {
			fmt.Fprintf(stdout, "Weather: %s\n", res.Weather.Condition)
		}
	}
	for _, d := range res.OutfitDescriptions {
		fmt.Fprintf(stdout, "Photo %d: %s\n", d.ImageIndex, truncate(d.Description, 72))
	}
	fmt.Fprintln(stdout)

	if len(res.Recommendations) == 0 {
		fmt.Fprintln(stdout, "No suggestions")
	} else {
		w := newTable()
		printTableHeader(w, "ID", "SUGGESTION", "REASON", "IMAGE")
		for _, r := range res.Recommendations {
			image := "-"
			if r.ImageURL != "" {
				image = client.URL(r.ImageURL)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.ID,
				truncate(r.SuggestionText, 32),
				truncate(orDash(r.Reason), 48),
				image,
			)
		}
		_ = w.Flush()
	}

	if res.Notes != "" {
		fmt.Fprintf(stdout, "\nNotes: %s\n", res.Notes)
	}
}
