package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aluiziolira/kdp-parser/models"
	"github.com/spf13/cobra"
)

// requiredURLSuffix pins the storefront to English so the extractors see the
// labels they match on.
const requiredURLSuffix = "?language=en_GB"

// NewAddCmd creates the add command.
func NewAddCmd(opts *globalOptions) *cobra.Command {
	book := &models.Book{}
	var language string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Example: `  kdpparser add --name "The Quiet Garden" \
    --url "https://www.amazon.com/dp/B0EXAMPLE1?language=en_GB" --language en`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			book.Language = models.Language(strings.ToLower(language))
			if err := validateBook(book); err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.AddBook(cmd.Context(), book); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added book %d: %s\n", book.ID, book.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&book.Name, "name", "", "Book title")
	cmd.Flags().StringVar(&book.URL, "url", "", "Product page URL ending in "+requiredURLSuffix)
	cmd.Flags().StringVar(&language, "language", string(models.LanguageEnglish), "Book language code")
	cmd.Flags().StringVar(&book.Series, "series", "", "Series name")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func validateBook(book *models.Book) error {
	book.Name = strings.TrimSpace(book.Name)
	book.URL = strings.TrimSpace(book.URL)
	if book.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	parsed, err := url.Parse(book.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("url %q is not an http(s) URL", book.URL)
	}
	if !strings.HasSuffix(book.URL, requiredURLSuffix) {
		return fmt.Errorf("url must end with %q", requiredURLSuffix)
	}
	if !book.Language.Valid() {
		return fmt.Errorf("unsupported language %q", book.Language)
	}
	return nil
}
