package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

var (
	bookDraft  lending.BookDraft
	bookByISBN bool
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Administer the book catalog",
}

var bookAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a book with its number of copies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			book, err := rt.engine.CreateBook(ctx, bookDraft)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), book)
		})
	},
}

var bookUpdateCmd = &cobra.Command{
	Use:   "update [book-id]",
	Short: "Change a book, flags that are not given keep their current value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookID, err := parseID("book", args[0])
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			current, err := rt.engine.GetBook(ctx, bookID)
			if err != nil {
				return err
			}

			book, err := rt.engine.UpdateBook(ctx, bookID, mergeBookDraft(cmd, current, bookDraft))
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), book)
		})
	},
}

var bookDeleteCmd = &cobra.Command{
	Use:   "delete [book-id]",
	Short: "Delete a book that has no active loans",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bookID, err := parseID("book", args[0])
		if err != nil {
			return err
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.engine.DeleteBook(ctx, bookID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "book %s deleted\n", bookID)

			return nil
		})
	},
}

var bookGetCmd = &cobra.Command{
	Use:   "get [book-id | isbn]",
	Short: "Show a book by id, or by isbn with --isbn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			var book lending.Book
			var err error

			if bookByISBN {
				book, err = rt.engine.FindBookByISBN(ctx, args[0])
			} else {
				bookID, parseErr := parseID("book", args[0])
				if parseErr != nil {
					return parseErr
				}

				book, err = rt.engine.GetBook(ctx, bookID)
			}

			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), book)
		})
	},
}

var bookSearchCmd = &cobra.Command{
	Use:   "search [title]",
	Short: "Search books by title, without a term all books are listed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			var books []lending.Book
			var err error

			if len(args) == 0 {
				books, err = rt.engine.ListBooks(ctx)
			} else {
				books, err = rt.engine.SearchBooks(ctx, args[0])
			}

			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), books)
		})
	},
}

// mergeBookDraft starts from the stored book and applies only the flags the user set.
func mergeBookDraft(cmd *cobra.Command, current lending.Book, flags lending.BookDraft) lending.BookDraft {
	draft := lending.BookDraft{
		Title:       current.Title,
		Author:      current.Author,
		ISBN:        current.ISBN,
		Year:        current.Year,
		Publisher:   current.Publisher,
		TotalCopies: current.TotalCopies,
	}

	changed := cmd.Flags().Changed

	if changed("title") {
		draft.Title = flags.Title
	}

	if changed("author") {
		draft.Author = flags.Author
	}

	if changed("isbn") {
		draft.ISBN = flags.ISBN
	}

	if changed("year") {
		draft.Year = flags.Year
	}

	if changed("publisher") {
		draft.Publisher = flags.Publisher
	}

	if changed("copies") {
		draft.TotalCopies = flags.TotalCopies
	}

	return draft
}

func addBookDraftFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&bookDraft.Title, "title", "", "Title")
	cmd.Flags().StringVar(&bookDraft.Author, "author", "", "Author")
	cmd.Flags().StringVar(&bookDraft.ISBN, "isbn", "", "ISBN with 10 or 13 digits")
	cmd.Flags().IntVar(&bookDraft.Year, "year", 0, "Publication year")
	cmd.Flags().StringVar(&bookDraft.Publisher, "publisher", "", "Publisher")
	cmd.Flags().IntVar(&bookDraft.TotalCopies, "copies", 1, "Number of physical copies")
}

func init() {
	rootCmd.AddCommand(bookCmd)
	bookCmd.AddCommand(bookAddCmd, bookUpdateCmd, bookDeleteCmd, bookGetCmd, bookSearchCmd)

	addBookDraftFlags(bookAddCmd)
	addBookDraftFlags(bookUpdateCmd)
	_ = bookAddCmd.MarkFlagRequired("title")
	_ = bookAddCmd.MarkFlagRequired("author")
	_ = bookAddCmd.MarkFlagRequired("isbn")
	_ = bookAddCmd.MarkFlagRequired("year")

	bookGetCmd.Flags().BoolVar(&bookByISBN, "isbn", false, "Treat the argument as an isbn")
}
