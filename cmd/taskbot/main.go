package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/qcheck/taskbot/internal/profile"
	"github.com/qcheck/taskbot/plugin/ai"
	"github.com/qcheck/taskbot/plugin/ai/extract"
	"github.com/qcheck/taskbot/server"
	"github.com/qcheck/taskbot/server/middleware"
	"github.com/qcheck/taskbot/server/service/directory"
	"github.com/qcheck/taskbot/server/service/taskcreate"
	"github.com/qcheck/taskbot/server/service/taskspec"
	"github.com/qcheck/taskbot/store"
	"github.com/qcheck/taskbot/store/db"
)

const greeting = `Taskbot is running.
Tell me about the task you want to create, for example:
  "Schedule a team meeting for next Friday at 2pm with John and Jane"
Type "quit" to exit.`

var (
	rootCmd = &cobra.Command{
		Use:   "taskbot",
		Short: "Conversational task creation service",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Talk to the engine on the terminal instead of over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runChat()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().String("mode", "demo", `mode of the engine: "prod", "dev", or "demo"`)
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver: "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("addr", "", "binding address")
	rootCmd.PersistentFlags().Int("port", 8082, "binding port")

	for _, name := range []string{"mode", "driver", "dsn", "data", "addr", "port"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("taskbot")
	viper.AutomaticEnv()

	rootCmd.AddCommand(chatCmd)
}

func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
		Data:   viper.GetString("data"),
		Addr:   viper.GetString("addr"),
		Port:   viper.GetInt("port"),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// bootstrap builds the full engine stack from a profile.
func bootstrap(ctx context.Context, p *profile.Profile) (*taskspec.Engine, *store.Store, func(), error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	llm, err := ai.NewLLMService(&ai.LLMConfig{
		APIKey:     p.LLMAPIKey,
		BaseURL:    p.LLMBaseURL,
		Model:      p.LLMModel,
		MaxRetries: p.LLMMaxRetry,
		Timeout:    time.Duration(p.LLMTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		st.Close()
		return nil, nil, nil, fmt.Errorf("failed to create llm service: %w", err)
	}

	committer, err := taskcreate.NewService(st, p.CanonicalTimezone)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	registry := taskspec.NewRegistry(st, p.SessionIdleTimeout)
	engine := taskspec.NewEngine(
		extract.NewExtractor(llm),
		directory.NewService(st),
		committer,
		st,
		registry,
		middleware.NewRateLimiter(20, 5),
	)

	cleanup := func() {
		registry.Close()
		st.Close()
	}
	return engine, st, cleanup, nil
}

func runServe() error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, _, cleanup, err := bootstrap(ctx, p)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.NewServer(p, engine)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func runChat() error {
	p, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, _, cleanup, err := bootstrap(ctx, p)
	if err != nil {
		return err
	}
	defer cleanup()

	user := os.Getenv("TASKBOT_USER")
	if user == "" {
		user = "demo user"
	}
	timezone := os.Getenv("TASKBOT_TZ")
	if timezone == "" {
		timezone = "UTC"
	}

	fmt.Println(greeting)
	scanner := bufio.NewScanner(os.Stdin)
	sessionID := ""
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		reply, err := engine.PostMessage(ctx, sessionID, user, line, timezone)
		if err != nil {
			fmt.Printf("! %v\n", err)
			continue
		}
		sessionID = reply.SessionID
		fmt.Println(reply.Text)
		if reply.State == taskspec.StateComplete || reply.State == taskspec.StateFailed {
			sessionID = ""
		}
	}
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
