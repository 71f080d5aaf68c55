package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"studio-go/internal/app"
	"studio-go/internal/config"
	"studio-go/internal/server"
	"studio-go/internal/studio"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a StudioApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string, notifier studio.Notifier) (*app.StudioApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewStudioApp(cfg, operation, notifier)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pw), nil
}

// confirmPrompt asks a y/N question on stderr.
func confirmPrompt(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func parseCategory(s string) (studio.RefCategory, error) {
	c := studio.RefCategory(strings.ToLower(s))
	for _, known := range studio.Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown reference category %q (want subject, style, or scene)", s)
}

// readFileData loads a local file into an in-memory FileData, sniffing
// its content type.
func readFileData(path string) (studio.FileData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return studio.FileData{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return studio.FileData{
		Name: filepath.Base(path),
		MIME: http.DetectContentType(data),
		Data: data,
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "studio",
	Short: "AI image studio vault and generation CLI",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Store:      %s (%s)\n", cfg.Store.Type, cfg.Store.DataDir)
		fmt.Printf("Backup:     %s\n", cfg.Backup.Type)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Proxy:      %s\n", cfg.Proxy.BaseURL)
		fmt.Printf("Server:     %s\n", cfg.Server.Addr)
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the studio HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		hub := server.NewHub(studio.NopLogger{})
		a, err := app.NewStudioApp(cfg, "Serve", hub)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		go hub.Run()
		defer hub.Shutdown()

		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: server.New(a.Service(), a.Codec(), hub, a.Logger()).Router(),
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			fmt.Printf("Listening on http://%s\n", cfg.Server.Addr)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down: %w", err)
			}
		}
		return nil
	},
}

// models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available generation models",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListModels", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		for _, m := range a.Service().ListModels(cmd.Context()) {
			fmt.Printf("%-40s %s\n", m.ID, m.Name)
		}
		return nil
	},
}

// generate command
var generateCmd = &cobra.Command{
	Use:   "generate PROMPT",
	Short: "Generate images from a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		ratio, _ := cmd.Flags().GetString("ratio")
		count, _ := cmd.Flags().GetInt("count")
		enhance, _ := cmd.Flags().GetBool("enhance")

		a, err := newApp("Generate", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		prompt := args[0]
		if enhance {
			prompt = a.Service().EnhancePrompt(cmd.Context(), prompt)
			fmt.Printf("Prompt: %s\n\n", prompt)
		}

		results, err := a.Service().Generate(cmd.Context(), prompt, model, ratio, count)
		if err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}

		fmt.Printf("Generated %d image(s)\n", len(results))
		for _, r := range results {
			fmt.Printf("%s  %s\n", r.ID, r.URL)
		}
		return nil
	},
}

// enhance command
var enhanceCmd = &cobra.Command{
	Use:   "enhance PROMPT",
	Short: "Enhance a prompt using staged reference keywords",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("EnhancePrompt", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println(a.Service().EnhancePrompt(cmd.Context(), args[0]))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View generation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GetHistory", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().History().Refresh(); err != nil {
			return err
		}
		entries := a.Service().History().Entries()
		if len(entries) == 0 {
			fmt.Println("No history.")
			return nil
		}

		for _, e := range entries {
			ts := time.UnixMilli(e.Timestamp).Format("2006-01-02 15:04:05")
			prompt := e.Prompt
			if len(prompt) > 60 {
				prompt = prompt[:57] + "..."
			}
			fmt.Printf("%s  %s  %-9s  %s\n", e.ID, ts, e.Source, prompt)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteHistory", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Service().History().Delete(args[0]); err != nil {
			return fmt.Errorf("deleting entry: %w", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ClearHistory", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		cleared, err := a.Service().History().ClearAll(func() bool {
			return confirmPrompt("Delete ALL history entries?")
		})
		if err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		if !cleared {
			fmt.Println("Aborted.")
			return nil
		}
		fmt.Println("History cleared.")
		return nil
	},
}

// refs command
var refsCmd = &cobra.Command{
	Use:   "refs",
	Short: "Manage reference images",
}

var refsAddCmd = &cobra.Command{
	Use:   "add CATEGORY FILE...",
	Short: "Stage reference images for analysis",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := parseCategory(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("StageRefs", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		files := make([]studio.FileData, 0, len(args)-1)
		for _, path := range args[1:] {
			f, err := readFileData(path)
			if err != nil {
				return err
			}
			files = append(files, f)
		}

		staged := a.Service().StageUploads(cmd.Context(), category, files)
		fmt.Printf("Staged %d file(s) in %s, analyzing...\n", len(staged), category)

		// Poll until every staged file leaves the loading state.
		deadline := time.Now().Add(60 * time.Second)
		for time.Now().Before(deadline) {
			pending := 0
			for _, sf := range a.Service().Staging().Files(category) {
				if sf.AnalysisStatus == studio.AnalysisLoading || sf.AnalysisStatus == studio.AnalysisPending {
					pending++
				}
			}
			if pending == 0 {
				break
			}
			time.Sleep(200 * time.Millisecond)
		}

		for _, sf := range a.Service().Staging().Files(category) {
			switch sf.AnalysisStatus {
			case studio.AnalysisDone:
				fmt.Printf("%s  %s  done  %s\n", sf.ID, sf.File.Name, sf.AnalysisResult)
			case studio.AnalysisError:
				fmt.Printf("%s  %s  error (analysis failed)\n", sf.ID, sf.File.Name)
			default:
				fmt.Printf("%s  %s  %s\n", sf.ID, sf.File.Name, sf.AnalysisStatus)
			}
		}
		return nil
	},
}

var refsListCmd = &cobra.Command{
	Use:   "list [CATEGORY]",
	Short: "List staged reference images",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListRefs", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		categories := studio.Categories
		if len(args) == 1 {
			c, err := parseCategory(args[0])
			if err != nil {
				return err
			}
			categories = []studio.RefCategory{c}
		}

		for _, c := range categories {
			files := a.Service().Staging().Files(c)
			fmt.Printf("%s (%d):\n", c, len(files))
			for _, sf := range files {
				fmt.Printf("  %s  %s  %s\n", sf.ID, sf.File.Name, sf.AnalysisStatus)
			}
		}
		return nil
	},
}

var refsRemoveCmd = &cobra.Command{
	Use:   "remove CATEGORY ID",
	Short: "Remove a staged reference image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := parseCategory(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("RemoveRef", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		a.Service().Staging().RemoveFile(category, args[1])
		fmt.Printf("Removed %s from %s\n", args[1], category)
		return nil
	},
}

var refsClearCmd = &cobra.Command{
	Use:   "clear CATEGORY",
	Short: "Clear a reference bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := parseCategory(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("ClearRefs", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		a.Service().Staging().ClearCategory(category)
		fmt.Printf("Cleared %s\n", category)
		return nil
	},
}

// library command
var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Browse the merged asset library",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("category")

		a, err := newApp("ListLibrary", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		assets, err := a.Service().Library().Assets(cmd.Context())
		if err != nil {
			return err
		}
		if filter != "" {
			assets = studio.Filter(assets, studio.LibraryCategory(filter))
		}

		if len(assets) == 0 {
			fmt.Println("Library is empty.")
			return nil
		}
		for _, asset := range assets {
			ts := time.UnixMilli(asset.Timestamp).Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %s  %-7s  %s\n", asset.ID, ts, asset.Type, asset.Category)
		}
		return nil
	},
}

var libraryApplyCmd = &cobra.Command{
	Use:   "apply ID CATEGORY",
	Short: "Stage a library asset as a reference image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := parseCategory(args[1])
		if err != nil {
			return err
		}

		a, err := newApp("ApplyAsset", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		sf, err := a.Service().ApplyAsCategory(cmd.Context(), args[0], category)
		if err != nil {
			return fmt.Errorf("applying asset: %w", err)
		}
		fmt.Printf("Staged %s in %s as %s\n", args[0], category, sf.ID)
		return nil
	},
}

var libraryConfirmCmd = &cobra.Command{
	Use:   "confirm ID...",
	Short: "Convert selected assets and write them to the current directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ConfirmSelection", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := a.Service().Library().ConfirmSelection(cmd.Context(), args)
		if err != nil {
			return fmt.Errorf("converting selection: %w", err)
		}

		for _, f := range files {
			if err := os.WriteFile(f.Name, f.Data, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", f.Name, err)
			}
			fmt.Printf("Wrote %s (%d bytes)\n", f.Name, len(f.Data))
		}
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the asset vault",
}

var vaultExportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Export the vault as a JSON archive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		a, err := newApp("ExportVault", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		path := studio.ExportFilename(a.Service().Now())
		if len(args) == 1 {
			path = args[0]
		}
		if encrypt {
			path += ".age"
		}

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		defer f.Close()

		var w io.Writer = f
		if encrypt {
			passphrase, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			wc, err := a.Encryptor().Encrypt(f, passphrase)
			if err != nil {
				return fmt.Errorf("starting encryption: %w", err)
			}
			defer wc.Close()
			w = wc
		}

		if err := a.Service().Export(w); err != nil {
			return fmt.Errorf("exporting vault: %w", err)
		}
		fmt.Printf("Exported vault to %s\n", path)
		return nil
	},
}

var vaultImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a JSON archive into the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypted, _ := cmd.Flags().GetBool("encrypt")

		a, err := newApp("ImportVault", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer f.Close()

		var r io.Reader = f
		if encrypted {
			passphrase, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			r, err = a.Encryptor().Decrypt(f, passphrase)
			if err != nil {
				return fmt.Errorf("starting decryption: %w", err)
			}
		}

		count, err := a.Service().Import(r)
		if err != nil {
			return fmt.Errorf("importing archive: %w", err)
		}
		fmt.Printf("Restored %d record(s)\n", count)
		return nil
	},
}

var vaultBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the vault to the backup target",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		a, err := newApp("BackupVault", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if encrypt {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			again, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if passphrase != again {
				return fmt.Errorf("passphrases do not match")
			}
		}

		if err := a.BackupVault(passphrase); err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Println("Vault backed up.")
		return nil
	},
}

var vaultRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the vault with the latest backup snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypted, _ := cmd.Flags().GetBool("encrypt")

		if !confirmPrompt("Overwrite the local vault with the latest snapshot?") {
			fmt.Println("Aborted.")
			return nil
		}

		a, err := newApp("RestoreVault", studio.NopNotifier{})
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if encrypted {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		if err := a.RestoreVault(passphrase); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Println("Vault restored.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)

	refsCmd.AddCommand(refsAddCmd)
	refsCmd.AddCommand(refsListCmd)
	refsCmd.AddCommand(refsRemoveCmd)
	refsCmd.AddCommand(refsClearCmd)

	libraryCmd.Flags().StringP("category", "c", "", "Filter by category")
	libraryCmd.AddCommand(libraryApplyCmd)
	libraryCmd.AddCommand(libraryConfirmCmd)

	vaultExportCmd.Flags().BoolP("encrypt", "e", false, "Encrypt the archive with a passphrase")
	vaultImportCmd.Flags().BoolP("encrypt", "e", false, "Archive is encrypted; prompt for passphrase")
	vaultCmd.AddCommand(vaultExportCmd)
	vaultCmd.AddCommand(vaultImportCmd)
	vaultBackupCmd.Flags().BoolP("encrypt", "e", false, "Encrypt the snapshot with a passphrase")
	vaultRestoreCmd.Flags().BoolP("encrypt", "e", false, "Snapshot is encrypted; prompt for passphrase")
	vaultCmd.AddCommand(vaultBackupCmd)
	vaultCmd.AddCommand(vaultRestoreCmd)

	generateCmd.Flags().StringP("model", "m", "", "Generation model ID")
	generateCmd.Flags().StringP("ratio", "r", "", "Aspect ratio (e.g. 1:1, 16:9)")
	generateCmd.Flags().IntP("count", "n", 1, "Number of images")
	generateCmd.Flags().Bool("enhance", false, "Enhance the prompt before generating")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(enhanceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(vaultCmd)
}
