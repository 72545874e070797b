package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/schaermu/mcmod/internal/config"
	"github.com/schaermu/mcmod/internal/deps"
	"github.com/schaermu/mcmod/internal/errkind"
	"github.com/schaermu/mcmod/internal/eula"
	"github.com/schaermu/mcmod/internal/git"
	"github.com/schaermu/mcmod/internal/gradle"
	"github.com/schaermu/mcmod/internal/graph"
	"github.com/schaermu/mcmod/internal/ninja"
	"github.com/schaermu/mcmod/internal/project"
	"github.com/schaermu/mcmod/internal/sync"
	"github.com/schaermu/mcmod/internal/watch"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	projectDir string
	cfgFile    string
	logLevel   string
	logFormat  string

	// Command flags
	incremental bool
	watchMode   bool
	noEclipse   bool
	fullSync    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(errkind.ExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "mcmod",
	Short: "Develop Minecraft Forge mods outside of the Forge workspace",
	Long: `mcmod keeps a Forge/Gradle mod workspace in sync with a project laid out by hand.

The project declares its metadata, dependencies and copy rules in mcmod.yaml;
the workspace is cloned from a template into target/ and updated from the
project on every sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the target workspace with the project",
	Long: `Sync provisions the template workspace if needed, merges gradle properties,
copies sources and assets, writes mod metadata, and downloads libs and mods.

With --incremental only sources and assets are copied. An incremental sync is
turned into a full one while the workspace has not been set up.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Fully sync and build the mod",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

var runCmd = &cobra.Command{
	Use:   "run [command]",
	Short: "Sync and run the game or a gradle task",
	Long: `Run syncs the project and runs a gradle task in the workspace.

Commands starting with "client" or "server" are mapped to runClient and
runServer ("client17" runs runClient17). Other commands are passed to gradle
as is. The server requires agreeing to the Minecraft EULA.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mcmod %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "project directory or any directory below it")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/mcmod/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("git-backend", string(config.GitShell), "how templates are cloned (shell, go-git)")
	rootCmd.PersistentFlags().Int("fetch-limit", 0, "maximum concurrent downloads (0 is unlimited)")

	// Sync command flags
	syncCmd.Flags().BoolVarP(&incremental, "incremental", "i", false, "only copy sources and assets")
	syncCmd.Flags().BoolVar(&watchMode, "watch", false, "keep syncing incrementally when sources change")
	syncCmd.Flags().BoolVar(&noEclipse, "no-eclipse", false, "do not generate eclipse project files")

	// Run command flags
	runCmd.Flags().BoolVarP(&fullSync, "sync", "s", false, "fully sync before running")

	// Add commands
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// session is what every command needs to drive the engine.
type session struct {
	ctx     context.Context
	logger  *slog.Logger
	cfg     *config.Config
	project *project.Project
}

func newSession(cmd *cobra.Command) (*session, context.CancelFunc, error) {
	ctx, cancel := setupSignalHandler()
	logger := setupLogger()

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	p, err := project.Open(projectDir)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	logger.Debug("project found", "root", p.Root)

	return &session{ctx: ctx, logger: logger, cfg: cfg, project: p}, cancel, nil
}

func (s *session) engine(p *project.Project, withoutEclipse bool) *sync.Engine {
	return sync.NewEngine(p, s.cfg, newTools(s.cfg, p, s.logger), s.logger, withoutEclipse)
}

func runSync(cmd *cobra.Command, args []string) error {
	s, cancel, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	if err := s.engine(s.project, noEclipse).Run(s.ctx, incremental); err != nil {
		if !watchMode {
			return err
		}
		s.logger.Error("sync failed", "error", err)
	}
	if !watchMode {
		return nil
	}

	root := s.project.Root
	sources, err := watch.Sources(s.project)
	if err != nil {
		s.logger.Warn("failed to resolve copy-rule sources, watching defaults", "error", err)
		sources = []string{s.project.SourceRoot(), s.project.AssetsRoot()}
	}
	w := watch.NewWatcher(root, sources,
		func(ctx context.Context, full bool) error {
			// A fresh project picks up manifest edits.
			return s.engine(project.New(root), noEclipse).Run(ctx, !full)
		}, s.logger)
	w.Ignore(s.project.TargetRoot(), s.project.BuildDescriptionPath(), s.project.LockPath(), filepath.Join(root, ".git"))
	w.OnManifestChange(func() ([]string, error) {
		return watch.Sources(project.New(root))
	})
	return w.Start(s.ctx)
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, cancel, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	out, err := s.engine(s.project, false).Build(s.ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("the output directory is: %s\n", out)
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	command := "client"
	if len(args) > 0 {
		command = args[0]
	}

	s, cancel, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	return s.engine(s.project, false).RunGame(s.ctx, command, fullSync)
}

func newTools(cfg *config.Config, p *project.Project, logger *slog.Logger) sync.Tools {
	var gitClient git.Client
	switch cfg.GitBackend {
	case config.GitGoGit:
		gitClient = git.NewGoGitClient()
	default:
		gitClient = git.NewShellClient()
	}

	return sync.Tools{
		Git:        gitClient,
		Gradle:     gradle.NewWrapper(logger),
		Ninja:      ninja.NewShellRunner(logger),
		Graph:      graph.NewBuilder(logger),
		Reconciler: deps.NewReconciler(&http.Client{}, p.Root, cfg.FetchLimit, logger),
		EULA:       eula.NewPrompter(cfg.EULAAutoAgree, logger),
	}
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format. Stdout belongs to gradle.
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(cmd *cobra.Command, logger *slog.Logger) (*config.Config, error) {
	v := config.NewViper()
	if err := bindFlagsToViper(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	logger.Debug("loading configuration", "path", configPath)

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"templates_file", cfg.TemplatesFile,
		"git_backend", cfg.GitBackend,
		"fetch_limit", cfg.FetchLimit)

	return cfg, nil
}

// bindFlagsToViper binds every flag of cmd to the setting of the same name,
// --fetch-limit to fetch_limit. Only flags set on the command line override
// the file and the environment.
func bindFlagsToViper(cmd *cobra.Command, v *viper.Viper) error {
	var result error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
