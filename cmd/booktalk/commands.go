package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/booktalk/internal/config"
	"github.com/kalambet/booktalk/internal/dialogue"
)

// --- catalog ---

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List book categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		cats, err := fetchCategories(cmd.Context(), client)
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Println(c)
		}
		return nil
	},
}

var booksCmd = &cobra.Command{
	Use:   "books <category>",
	Short: "List the top-rated books of a category",
	Long: `List the top-rated books of a category.

Examples:
  booktalk books Fantasy
  booktalk books "Science Fiction" --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		books, err := fetchBooks(cmd.Context(), client, args[0], limit)
		if err != nil {
			return err
		}
		if len(books) == 0 {
			printWarning("no books in category %q", args[0])
			return nil
		}
		printBooks(os.Stdout, books)
		return nil
	},
}

func init() {
	booksCmd.Flags().Int("limit", 0, "maximum number of books (server default when 0)")
}

func fetchCategories(ctx context.Context, client *apiClient) ([]string, error) {
	resp, err := client.get(ctx, "/api/categories")
	if err != nil {
		return nil, err
	}
	var result struct {
		Categories []string `json:"categories"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	return result.Categories, nil
}

func fetchBooks(ctx context.Context, client *apiClient, category string, limit int) ([]bookRow, error) {
	q := url.Values{"category": {category}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	resp, err := client.get(ctx, "/api/books?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var result struct {
		Books []bookRow `json:"books"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return nil, err
	}
	return result.Books, nil
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <unique_id>",
	Short: "Chat about one book interactively",
	Long: `Chat about one book interactively. The conversation is kept by this
command and resent with every turn; the server remembers nothing.

Type "exit" or press Ctrl-D to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		opening, _ := cmd.Flags().GetBool("greet")
		return runChat(cmd.Context(), client, args[0], opening, os.Stdin, os.Stdout)
	},
}

func init() {
	chatCmd.Flags().Bool("greet", true, "ask the assistant to open the conversation")
}

func sendTurn(ctx context.Context, client *apiClient, id string, history []dialogue.Message) (dialogue.Message, error) {
	resp, err := client.post(ctx, "/api/chat", dialogue.TurnRequest{UniqueID: id, Messages: history})
	if err != nil {
		return dialogue.Message{}, err
	}
	var result struct {
		Message dialogue.Message `json:"message"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		return dialogue.Message{}, err
	}
	return result.Message, nil
}

// runChat reads user lines from in and prints assistant replies to out until
// EOF or "exit". A failed turn is reported and left out of the history so the
// user can retry; an unknown book ends the session.
func runChat(ctx context.Context, client *apiClient, id string, greet bool, in io.Reader, out io.Writer) error {
	history := []dialogue.Message{}

	if greet {
		reply, err := sendTurn(ctx, client, id, history)
		if err != nil {
			return chatFailure(err)
		}
		history = append(history, reply)
		fmt.Fprintln(out, assistantLine(reply.Content))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for {
		fmt.Fprint(out, colorize(colorBold, "you: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		pending := append(history, dialogue.Message{Role: dialogue.RoleUser, Content: line})
		reply, err := sendTurn(ctx, client, id, pending)
		if err != nil {
			if ferr := chatFailure(err); isFatalChatError(err) {
				return ferr
			}
			printError("%v", err)
			continue
		}
		history = append(pending, reply)
		fmt.Fprintln(out, assistantLine(reply.Content))
	}
}

func isFatalChatError(err error) bool {
	var serr *serverError
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Status == http.StatusNotFound || serr.Status == http.StatusBadRequest
}

func chatFailure(err error) error {
	var serr *serverError
	if errors.As(err, &serr) && serr.Status == http.StatusNotFound {
		return fmt.Errorf("no book with that id; run \"booktalk books <category>\" to find one")
	}
	return err
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
