package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	outfit "github.com/Mallikarjun30/OutfitSuggestion"
)

var wardrobeCmd = &cobra.Command{
	Use:   "wardrobe",
	Short: "Manage wardrobe items",
	Long: `Wardrobe commands.

Examples:
  outfitctl wardrobe list
  outfitctl wardrobe upload coat.jpg jeans.png
  outfitctl wardrobe get 12
  outfitctl wardrobe image 12 13 --dir ./photos
  outfitctl wardrobe delete 12`,
}

var wardrobeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wardrobe items",
	Args:  cobra.NoArgs,
	RunE:  runWardrobeList,
}

var wardrobeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a wardrobe item",
	Args:  cobra.ExactArgs(1),
	RunE:  runWardrobeGet,
}

var wardrobeUploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload clothing photos",
	Long: `Upload one or more photos (png, jpg, jpeg, gif). The backend describes
each photo and adds it to your wardrobe.

The upload fails as a whole if the backend rejects any file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWardrobeUpload,
}

var wardrobeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a wardrobe item",
	Args:  cobra.ExactArgs(1),
	RunE:  runWardrobeDelete,
}

var wardrobeImageCmd = &cobra.Command{
	Use:   "image <id>...",
	Short: "Download item photos",
	Long: `Download the photos of one or more items into --dir. Files are named
<id> plus the extension matching the photo's content type.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWardrobeImage,
}

func init() {
	wardrobeImageCmd.Flags().String("dir", ".", "directory to save photos to")

	wardrobeCmd.AddCommand(wardrobeListCmd)
	wardrobeCmd.AddCommand(wardrobeGetCmd)
	wardrobeCmd.AddCommand(wardrobeUploadCmd)
	wardrobeCmd.AddCommand(wardrobeDeleteCmd)
	wardrobeCmd.AddCommand(wardrobeImageCmd)

	rootCmd.AddCommand(wardrobeCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}

func printItems(items []outfit.WardrobeItem) error {
	if structured() {
		return printStructured(map[string]any{
			"items": items,
			"count": len(items),
		})
	}

	if len(items) == 0 {
		fmt.Fprintln(stdout, "No wardrobe items found")
		return nil
	}

	w := newTable()
	printTableHeader(w, "ID", "NAME", "CATEGORY", "DESCRIPTION")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			it.ID,
			truncate(it.Name, 24),
			it.Category,
			truncate(orDash(it.FallbackText), 48),
		)
	}
	return w.Flush()
}

func runWardrobeList(cmd *cobra.Command, args []string) error {
	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	items, err := client.Wardrobe.List(cmd.Context())
	if err != nil {
		return err
	}
	return printItems(items)
}

func runWardrobeGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	item, err := client.Wardrobe.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(item)
	}
	fmt.Fprintf(stdout, "ID:          %s\n", item.ID)
	fmt.Fprintf(stdout, "Name:        %s\n", item.Name)
	fmt.Fprintf(stdout, "Category:    %s\n", item.Category)
	fmt.Fprintf(stdout, "Image:       %s\n", orDash(client.URL(item.ImageURL)))
	fmt.Fprintf(stdout, "Description: %s\n", orDash(item.FallbackText))
	return nil
}

func runWardrobeUpload(cmd *cobra.Command, args []string) error {
	files := make([]outfit.File, 0, len(args))
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		files = append(files, outfit.File{Name: filepath.Base(path), Content: f})
	}

	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	items, err := client.Wardrobe.Upload(cmd.Context(), files)
	if errors.Is(err, outfit.ErrPartialUpload) {
		return fmt.Errorf("%w (only png, jpg, jpeg and gif are accepted; run `outfitctl wardrobe list` to see what was stored)", err)
	}
	if err != nil {
		return err
	}
	return printItems(items)
}

func runWardrobeDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	deleted, err := client.Wardrobe.Delete(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("item %d was not deleted", id)
	}
	fmt.Fprintf(stdout, "Deleted item %d\n", id)
	return nil
}

func runWardrobeImage(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	client, closeFn, err := getClient(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	if err := requireSession(client); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	images := outfit.NewImageSet()
	defer images.Close()

	for _, id := range ids {
		img, err := client.Wardrobe.FetchImage(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("item %d: %w", id, err)
		}
		if err := images.Put(img); err != nil {
			return err
		}

		dest := filepath.Join(dir, strconv.FormatInt(id, 10)+filepath.Ext(img.Path))
		if err := copyFile(img.Path, dest); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Saved item %d to %s (%s)\n", id, dest, humanize.Bytes(uint64(img.Size)))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return out.Close()
}
