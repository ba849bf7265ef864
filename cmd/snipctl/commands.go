package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MohamedElashri/snipvault/internal/models"
)

var (
	apiURL     string
	outputJSON bool

	listPage  int
	listLimit int

	loginEmail    string
	loginPassword string

	snippetTitle       string
	snippetDescription string
	snippetCode        string
	snippetFile        string
	snippetLanguage    string
	snippetTags        []string
)

var (
	rootCmd = &cobra.Command{
		Use:           "snipctl",
		Short:         "Manage code snippets on a snipo server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the snipctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("snipctl %s (commit %s)\n", Version, Commit)
		},
	}

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session token",
		Long: `Sign in with email and password. The password is read from --password,
SNIPO_PASSWORD or the first line of stdin, in that order. The token is kept
in the user config directory for later commands.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the token",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}

	listCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active snippets",
		Args:    cobra.NoArgs,
		RunE:    runList,
	}

	getCmd = &cobra.Command{
		Use:   "get <id>",
		Short: "Show a snippet",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}

	createCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a snippet",
		Long: `Create a snippet. Code comes from --code, from --file, or from stdin
when --file is "-".`,
		Args: cobra.NoArgs,
		RunE: runCreate,
	}

	editCmd = &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a snippet's fields",
		Long: `Change a snippet. Only the given flags are changed; the rest is taken
from the snippet as stored on the server. The previous content is kept as a
version.`,
		Args: cobra.ExactArgs(1),
		RunE: runEdit,
	}

	trashCmd = &cobra.Command{
		Use:   "trash <id>",
		Short: "Move a snippet to the trash",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrash,
	}

	trashListCmd = &cobra.Command{
		Use:   "list",
		Short: "List trashed snippets",
		Args:  cobra.NoArgs,
		RunE:  runTrashList,
	}

	trashEmptyCmd = &cobra.Command{
		Use:   "empty",
		Short: "Permanently delete every trashed snippet",
		Args:  cobra.NoArgs,
		RunE:  runTrashEmpty,
	}

	restoreCmd = &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a snippet from the trash",
		Args:  cobra.ExactArgs(1),
		RunE:  runRestore,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Permanently delete a snippet",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}

	favCmd = &cobra.Command{
		Use:   "fav <id>",
		Short: "Toggle a snippet's favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE:  runFav,
	}

	favoritesCmd = &cobra.Command{
		Use:   "favorites",
		Short: "List favorite snippets",
		Args:  cobra.NoArgs,
		RunE:  runFavorites,
	}

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Search snippet titles, descriptions, code and tags",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	tagCmd = &cobra.Command{
		Use:   "tag <tag>",
		Short: "List snippets with a tag",
		Args:  cobra.ExactArgs(1),
		RunE:  runTag,
	}

	tagsCmd = &cobra.Command{
		Use:   "tags",
		Short: "List the tags of active snippets",
		Args:  cobra.NoArgs,
		RunE:  runTags,
	}

	versionsCmd = &cobra.Command{
		Use:   "versions <id>",
		Short: "Show a snippet's version history, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runVersions,
	}

	restoreVersionCmd = &cobra.Command{
		Use:   "restore-version <id> <index>",
		Short: "Restore a snippet to an earlier version",
		Args:  cobra.ExactArgs(2),
		RunE:  runRestoreVersion,
	}

	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Load active snippets, trash and favorites at once",
		Args:  cobra.NoArgs,
		RunE:  runRefresh,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides SNIPO_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Print results as JSON")

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password")
	_ = loginCmd.MarkFlagRequired("email")

	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Snippets per page (default SNIPO_PAGE_SIZE)")

	for _, c := range []*cobra.Command{createCmd, editCmd} {
		c.Flags().StringVarP(&snippetTitle, "title", "t", "", "Title")
		c.Flags().StringVarP(&snippetDescription, "description", "d", "", "Description")
		c.Flags().StringVarP(&snippetCode, "code", "c", "", "Code")
		c.Flags().StringVarP(&snippetFile, "file", "f", "", `Read code from a file ("-" for stdin)`)
		c.Flags().StringVarP(&snippetLanguage, "language", "l", "", "Programming language")
		c.Flags().StringSliceVar(&snippetTags, "tag", nil, "Tag (repeatable)")
	}

	trashCmd.AddCommand(trashListCmd, trashEmptyCmd)

	rootCmd.AddCommand(
		versionCmd,
		loginCmd, logoutCmd, whoamiCmd,
		listCmd, getCmd, createCmd, editCmd,
		trashCmd, restoreCmd, deleteCmd,
		favCmd, favoritesCmd,
		searchCmd, tagCmd, tagsCmd,
		versionsCmd, restoreVersionCmd,
		refreshCmd,
	)
}

func runLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		password = os.Getenv("SNIPO_PASSWORD")
	}
	if password == "" {
		line, err := readLine(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = line
	}

	res, err := current.client.Login(cmd.Context(), loginEmail, password)
	if err != nil {
		return err
	}
	if err := saveToken(res.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	if outputJSON {
		return OutputJSON(res)
	}
	fmt.Printf("Signed in as %s\n", res.User.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	err := current.client.Logout(cmd.Context())
	if rmErr := removeToken(); rmErr != nil {
		return fmt.Errorf("failed to remove token: %w", rmErr)
	}
	if err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	if !current.session.IsAuthenticated() {
		return errors.New("not signed in")
	}
	user, err := current.client.Me(cmd.Context())
	if err != nil {
		return err
	}

	if outputJSON {
		return OutputJSON(map[string]any{"user": user, "expiresAt": current.session.ExpiresAt()})
	}
	fmt.Printf("%s (%s)\n", user.Email, user.ID)
	fmt.Println(mutedStyle.Render("session expires " + shortTime(current.session.ExpiresAt())))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	snippets, pagination, err := current.gw.ListActive(cmd.Context(), listPage, listLimit)
	if err != nil {
		return err
	}
	printSnippets(current.store, snippets)
	printPagination(pagination)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	s, err := current.gw.FetchOne(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printSnippet(current.store, s)
	return nil
}

// readCode resolves the code of a create or edit from --code and --file
func readCode(cmd *cobra.Command) (string, bool, error) {
	switch {
	case cmd.Flags().Changed("file"):
		var (
			data []byte
			err  error
		)
		if snippetFile == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(snippetFile)
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to read code: %w", err)
		}
		return string(data), true, nil
	case cmd.Flags().Changed("code"):
		return snippetCode, true, nil
	default:
		return "", false, nil
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	code, _, err := readCode(cmd)
	if err != nil {
		return err
	}

	s, err := current.gw.Create(cmd.Context(), models.SnippetInput{
		Title:       snippetTitle,
		Description: snippetDescription,
		Code:        code,
		Language:    snippetLanguage,
		Tags:        snippetTags,
	})
	if err != nil {
		return err
	}

	if outputJSON {
		return OutputJSON(s)
	}
	fmt.Printf("%s %s\n", current.store.LastMessage(), mutedStyle.Render(s.ID))
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]

	existing, err := current.gw.FetchOne(ctx, id)
	if err != nil {
		return err
	}

	input := models.SnippetInput{
		Title:       existing.Title,
		Description: existing.Description,
		Code:        existing.Code,
		Language:    existing.Language,
		Tags:        existing.Tags,
	}
	flags := cmd.Flags()
	if flags.Changed("title") {
		input.Title = snippetTitle
	}
	if flags.Changed("description") {
		input.Description = snippetDescription
	}
	if flags.Changed("language") {
		input.Language = snippetLanguage
	}
	if flags.Changed("tag") {
		input.Tags = snippetTags
	}
	code, changed, err := readCode(cmd)
	if err != nil {
		return err
	}
	if changed {
		input.Code = code
	}

	s, err := current.gw.Update(ctx, id, input)
	if err != nil {
		return err
	}
	if outputJSON {
		return OutputJSON(s)
	}
	printMessage(current.store, "Snippet updated")
	return nil
}

func runTrash(cmd *cobra.Command, args []string) error {
	if err := current.gw.MoveToTrash(cmd.Context(), args[0]); err != nil {
		return err
	}
	printMessage(current.store, "Snippet moved to trash")
	return nil
}

func runTrashList(cmd *cobra.Command, args []string) error {
	snippets, err := current.gw.ListTrash(cmd.Context())
	if err != nil {
		return err
	}
	printSnippets(current.store, snippets)
	return nil
}

func runTrashEmpty(cmd *cobra.Command, args []string) error {
	if err := current.gw.EmptyTrash(cmd.Context()); err != nil {
		return err
	}
	printMessage(current.store, "Trash emptied")
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	if _, err := current.gw.RestoreFromTrash(cmd.Context(), args[0]); err != nil {
		return err
	}
	printMessage(current.store, "Snippet restored")
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := current.gw.DeleteForever(cmd.Context(), args[0]); err != nil {
		return err
	}
	printMessage(current.store, "Snippet permanently deleted")
	return nil
}

func runFav(cmd *cobra.Command, args []string) error {
	s, err := current.gw.ToggleFavorite(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if outputJSON {
		return OutputJSON(s)
	}
	printMessage(current.store, "Favorite toggled")
	return nil
}

func runFavorites(cmd *cobra.Command, args []string) error {
	snippets, err := current.gw.ListFavorites(cmd.Context())
	if err != nil {
		return err
	}
	printSnippets(current.store, snippets)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	snippets, err := current.gw.Search(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	printSnippets(current.store, snippets)
	return nil
}

func runTag(cmd *cobra.Command, args []string) error {
	snippets, err := current.gw.ListByTag(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printSnippets(current.store, snippets)
	return nil
}

// runTags derives the tag list from the active snippets the store holds
func runTags(cmd *cobra.Command, args []string) error {
	if _, _, err := current.gw.ListActive(cmd.Context(), 1, 100); err != nil {
		return err
	}
	tags := current.store.KnownTags()

	if outputJSON {
		return OutputJSON(tags)
	}
	if len(tags) == 0 {
		fmt.Println(mutedStyle.Render("no tags"))
		return nil
	}
	for _, t := range tags {
		fmt.Println(t)
	}
	return nil
}

func runVersions(cmd *cobra.Command, args []string) error {
	versions, err := current.gw.FetchVersions(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printVersions(versions)
	return nil
}

func runRestoreVersion(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]
	index, err := strconv.Atoi(args[1])
	if err != nil || index < 0 {
		return fmt.Errorf("invalid version index %q", args[1])
	}

	// restoring needs the history held for this snippet
	if _, err := current.gw.FetchVersions(ctx, id); err != nil {
		return err
	}
	s, err := current.gw.RestoreVersion(ctx, id, index)
	if err != nil {
		return err
	}
	if _, err := current.gw.FetchVersions(ctx, id); err != nil {
		current.logger.Warn("failed to reload versions", "id", id, "error", err)
	}

	if outputJSON {
		return OutputJSON(s)
	}
	printMessage(current.store, "Version restored")
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	err := current.gw.Refresh(cmd.Context())

	st := current.store.Snapshot()
	if outputJSON {
		out := map[string]any{
			"active":     len(st.Active),
			"trashed":    len(st.Trashed),
			"favorites":  len(st.Favorites),
			"pagination": st.Pagination,
		}
		if st.LastError != nil {
			out["error"] = st.LastError
		}
		if encErr := OutputJSON(out); encErr != nil {
			return encErr
		}
		return err
	}

	fmt.Printf("%d active, %d trashed, %d favorites\n", len(st.Active), len(st.Trashed), len(st.Favorites))
	return err
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
