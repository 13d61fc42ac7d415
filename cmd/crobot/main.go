package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/hasan199191/crobot/internal/bot"
	"github.com/hasan199191/crobot/internal/browser"
	"github.com/hasan199191/crobot/internal/config"
	"github.com/hasan199191/crobot/internal/generator"
	"github.com/hasan199191/crobot/internal/logging"
	"github.com/hasan199191/crobot/internal/mailbox"
	"github.com/hasan199191/crobot/internal/scheduler"
	"github.com/hasan199191/crobot/internal/store"
	"github.com/hasan199191/crobot/internal/twitter"
)

var version = "1.0.0"

var (
	configPath string
	verbose    bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "crobot",
	Short: "crobot - scheduled Twitter/X posting worker",
	Long: `crobot runs as a long-lived worker: it logs into a Twitter/X account
through a headless browser, generates posts and replies with an LLM,
and publishes them on a randomized schedule while serving a health
endpoint for the hosting platform.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; deployed workers get real env vars.
		_ = godotenv.Load()

		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.Level, cfg.Logging.Enabled); err != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the worker loop (same as the bare command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context())
	},
}

var postCmd = &cobra.Command{
	Use:   "post [topic]",
	Short: "Generate and post a single tweet, then exit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.close()

		topic := ""
		if len(args) > 0 {
			topic = args[0]
		} else if len(cfg.Generator.Topics) > 0 {
			topic = cfg.Generator.Topics[0]
		}

		ctx := cmd.Context()
		text, err := deps.gen.CompleteWithSystem(ctx, generator.SystemPrompt(), generator.PostPrompt(topic))
		if err != nil {
			return fmt.Errorf("generate post: %w", err)
		}
		text = generator.Sanitize(text)
		logger.Info("posting", zap.String("topic", topic), zap.Int("chars", len(text)))

		if err := deps.client.PostTweet(ctx, text); err != nil {
			return err
		}
		_, err = deps.hist.RecordPost(ctx, store.KindPost, topic, text)
		return err
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply [username]",
	Short: "Reply once to a monitored account's latest tweet, then exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.close()

		ctx := cmd.Context()
		tweet, err := deps.client.LatestTweet(ctx, args[0])
		if err != nil {
			return err
		}

		seen, err := deps.hist.HasCommented(ctx, tweet.URL)
		if err != nil {
			return err
		}
		if seen {
			logger.Info("already replied", zap.String("url", tweet.URL))
			return nil
		}

		reply, err := deps.gen.CompleteWithSystem(ctx, generator.SystemPrompt(), generator.ReplyPrompt(tweet.Text))
		if err != nil {
			return fmt.Errorf("generate reply: %w", err)
		}
		reply = generator.Sanitize(reply)

		if err := deps.client.PostComment(ctx, tweet.URL, reply); err != nil {
			return err
		}
		_, err = deps.hist.RecordPost(ctx, store.KindComment, tweet.URL, reply)
		return err
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and persist the browser session, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.close()

		if err := deps.client.Login(cmd.Context()); err != nil {
			return err
		}
		logger.Info("login verified, session saved",
			zap.String("session", cfg.Browser.SessionFile))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("crobot %s\n", version)
	},
}

// deps bundles the wired components for one-shot commands and the
// worker loop.
type deps struct {
	mgr    *browser.Manager
	client *twitter.Client
	gen    generator.Client
	hist   *store.Store
}

func (d *deps) close() {
	if d.hist != nil {
		_ = d.hist.Close()
	}
	if d.mgr != nil {
		_ = d.mgr.Close()
	}
}

func buildDeps() (*deps, error) {
	mgr := browser.NewManager(browser.Config{
		Bin:            cfg.Browser.Bin,
		Headless:       cfg.Browser.Headless,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		NavTimeout:     cfg.GetNavTimeout(),
		SessionFile:    cfg.Browser.SessionFile,
		ScreenshotDir:  cfg.Browser.ScreenshotDir,
	})

	codes := mailbox.NewReader(mailbox.Config{
		Host:               cfg.Mailbox.Host,
		Port:               cfg.Mailbox.Port,
		Username:           cfg.Mailbox.Username,
		Password:           cfg.Mailbox.Password,
		VerificationSender: cfg.Mailbox.VerificationSender,
		PollInterval:       cfg.GetPollInterval(),
		WaitTimeout:        cfg.GetWaitTimeout(),
	})

	gen, err := generator.New(generator.Config{
		Provider: cfg.Generator.Provider,
		APIKey:   cfg.Generator.APIKey,
		Model:    cfg.Generator.Model,
		BaseURL:  cfg.Generator.BaseURL,
		Timeout:  cfg.GetGeneratorTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	hist, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	client := twitter.NewClient(twitter.Config{
		Username:   cfg.Twitter.Username,
		Password:   cfg.Twitter.Password,
		TweetLimit: cfg.Twitter.TweetLimit,
	}, mgr, codes, nil)

	return &deps{mgr: mgr, client: client, gen: gen, hist: hist}, nil
}

func runWorker(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	sched := scheduler.New(scheduler.Config{
		MinInterval:        cfg.GetMinInterval(),
		MaxInterval:        cfg.GetMaxInterval(),
		MaxPostsPerDay:     cfg.Schedule.MaxPostsPerDay,
		MaxCommentsPerDay:  cfg.Schedule.MaxCommentsPerDay,
		CommentProbability: cfg.Schedule.CommentProbability,
	}, nil, nil)

	// Budgets consumed before a restart still count for today.
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	posts, perr := d.hist.CountSince(ctx, store.KindPost, midnight)
	comments, cerr := d.hist.CountSince(ctx, store.KindComment, midnight)
	if perr == nil && cerr == nil {
		sched.Seed(posts, comments)
	}

	b := bot.New(bot.Config{
		Topics:            cfg.Generator.Topics,
		MonitoredAccounts: cfg.Twitter.MonitoredAccounts,
	}, d.client, d.gen, d.hist, sched, nil)

	// Schedule tuning reloads without a restart; secrets and wiring
	// still require one.
	if watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		sched.UpdateConfig(scheduler.Config{
			MinInterval:        newCfg.GetMinInterval(),
			MaxInterval:        newCfg.GetMaxInterval(),
			MaxPostsPerDay:     newCfg.Schedule.MaxPostsPerDay,
			MaxCommentsPerDay:  newCfg.Schedule.MaxCommentsPerDay,
			CommentProbability: newCfg.Schedule.CommentProbability,
		})
	}); err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher failed to start", zap.Error(err))
		}
	}

	logger.Info("worker starting",
		zap.String("version", version),
		zap.String("account", cfg.Twitter.Username),
		zap.String("health", cfg.Health.Addr))
	logging.Boot("worker starting (version %s)", version)

	return b.Run(ctx, cfg.Health.Addr)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd, postCmd, replyCmd, loginCmd, configCmd, versionCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
