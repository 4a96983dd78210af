// switch-console automates interactive CLI sessions on network devices
// reached over a serial console, terminal server, or SSH.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/netopsai/switch-console/internal/adapters/netconsole"
	"github.com/netopsai/switch-console/internal/adapters/ptyconsole"
	"github.com/netopsai/switch-console/internal/adapters/sshconsole"
	"github.com/netopsai/switch-console/internal/config"
	"github.com/netopsai/switch-console/internal/logging"
	"github.com/netopsai/switch-console/internal/plan"
	"github.com/netopsai/switch-console/internal/ports"
	"github.com/netopsai/switch-console/internal/prompt"
	"github.com/netopsai/switch-console/internal/security"
	"github.com/netopsai/switch-console/internal/session"
)

// Version information - set at build time.
var (
	Version   = "0.4.2"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", config.DefaultConfigPath(), "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging of console traffic")
	flag.Parse()

	if showVersion {
		fmt.Printf("switch-console version %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize)

	slog.Info("starting switch-console",
		slog.String("version", Version),
		slog.String("console", cfg.Console.Kind),
	)

	if err := run(cfg, configPath, debug); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, debug bool) error {
	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	classifier, err := buildClassifier(cfg.PromptRules)
	if err != nil {
		return err
	}

	var filter atomic.Pointer[security.CommandFilter]
	initialFilter, err := buildFilter(cfg.Security)
	if err != nil {
		return err
	}
	filter.Store(initialFilter)

	sess := session.New(transport, session.Options{
		ResponseTimeout: cfg.Timeouts.Response,
		ConnectTimeout:  cfg.Timeouts.Connect,
		ReadInterval:    cfg.Timeouts.ReadInterval,
		Classifier:      classifier,
	})

	// Hot-reload only touches the command filter; session timing and the
	// transport are fixed for the life of the connection.
	if configPath != "" {
		watcher, werr := config.NewWatcher(configPath, func(newCfg *config.Config) {
			if f, ferr := buildFilter(newCfg.Security); ferr == nil {
				filter.Store(f)
			} else {
				slog.Warn("keeping previous command filter",
					slog.String("error", ferr.Error()),
				)
			}
		})
		if werr != nil {
			slog.Warn("config hot-reload disabled", slog.String("error", werr.Error()))
		} else {
			defer watcher.Close()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("received shutdown signal")
		if err := sess.Disconnect(); err != nil {
			slog.Warn("disconnect on shutdown", slog.String("error", err.Error()))
		}
		os.Exit(0)
	}()

	resolver := &security.Resolver{
		Store:      security.NewKeyringStore(),
		UseKeyring: cfg.Credentials.UseKeyring,
	}
	if err := establish(sess, resolver, cfg.Credentials, cfg.Device.Model); err != nil {
		return err
	}
	defer sess.Disconnect()

	planner := plan.NewStaticPlanner()
	executor := plan.NewExecutor(sess)

	return repl(sess, planner, executor, resolver, cfg, &filter)
}

// establish connects and authenticates the session. Credentials are resolved
// fresh each time and wiped as soon as login returns, so a later reconnect
// resolves them again.
func establish(sess *session.Session, resolver *security.Resolver, cred config.CredentialsConfig, model string) error {
	if err := sess.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	creds, err := resolver.Resolve(model,
		cred.UsernameEnv,
		cred.PasswordEnv,
		cred.EnablePasswordEnv,
	)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}
	err = sess.Login(creds.Username, creds.Password, creds.EnablePassword)
	creds.Wipe()
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// repl reads requests from stdin and prints device output until EOF or an
// explicit exit.
func repl(sess *session.Session, planner plan.Planner, executor *plan.Executor, resolver *security.Resolver, cfg *config.Config, filter *atomic.Pointer[security.CommandFilter]) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Printf("%s ", sess.Prompt())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		switch line {
		case "":
			state, promptText := sess.RefreshState()
			fmt.Printf("[%s] %s\n", state, promptText)
			continue
		case "exit", "quit":
			return nil
		}

		if sess.State() == prompt.StateDisconnected {
			fmt.Println("session lost; reconnecting")
			if err := establish(sess, resolver, cfg.Credentials, cfg.Device.Model); err != nil {
				return fmt.Errorf("reconnect: %w", err)
			}
		}

		p, err := planner.Plan(context.Background(), line, plan.DeviceContext{
			Model:  cfg.Device.Model,
			State:  sess.State(),
			Prompt: sess.Prompt(),
		})
		if err != nil {
			fmt.Printf("cannot plan %q: %v\n", line, err)
			continue
		}

		if cmd, reason, ok := filterPlan(filter.Load(), p); !ok {
			fmt.Printf("refusing %q: %s\n", cmd, reason)
			continue
		}

		res, err := executor.Execute(p)
		for _, out := range res.Outputs {
			if out != "" {
				fmt.Println(out)
			}
		}
		if err != nil {
			var cmdErr *plan.CommandError
			if errors.As(err, &cmdErr) {
				fmt.Printf("device rejected %q: %s\n", cmdErr.Command, cmdErr.Line)
				continue
			}
			return err
		}
		if res.VerifyOutput != "" {
			fmt.Println(res.VerifyOutput)
		}
	}
	return scanner.Err()
}

// filterPlan checks every command the plan would send. Returns the first
// refused command and the reason, or ok.
func filterPlan(filter *security.CommandFilter, p plan.Plan) (string, string, bool) {
	cmds := p.Commands
	if p.VerifyCommand != "" {
		cmds = append(append([]string{}, cmds...), p.VerifyCommand)
	}
	for _, cmd := range cmds {
		if allowed, reason := filter.IsAllowed(cmd); !allowed {
			return cmd, reason, false
		}
	}
	return "", "", true
}

func buildTransport(cfg *config.Config) (ports.Transport, error) {
	switch cfg.Console.Kind {
	case "tcp":
		return netconsole.New(cfg.Console.Address, netconsole.Options{
			DialTimeout: cfg.Timeouts.Connect,
		}), nil
	case "ssh":
		return sshconsole.New(sshconsole.Options{
			Address:     cfg.Console.Address,
			User:        cfg.Console.User,
			Password:    os.Getenv(cfg.Console.PasswordEnv),
			DialTimeout: cfg.Timeouts.Connect,
		}), nil
	case "pty":
		return ptyconsole.New(cfg.Console.Command)
	default:
		return nil, fmt.Errorf("unknown console kind %q", cfg.Console.Kind)
	}
}

func buildClassifier(rules []config.RuleConfig) (*prompt.Classifier, error) {
	classifier := prompt.NewClassifier()
	for _, r := range rules {
		if err := classifier.AddRuleFromConfig(r.Name, r.Regex, prompt.SessionState(r.State)); err != nil {
			return nil, fmt.Errorf("prompt rule %q: %w", r.Name, err)
		}
	}
	return classifier, nil
}

func buildFilter(sec config.SecurityConfig) (*security.CommandFilter, error) {
	blocklist := sec.CommandBlocklist
	if sec.DefaultBlocklist {
		blocklist = append(append([]string{}, security.DefaultBlocklist()...), blocklist...)
	}
	return security.NewCommandFilter(blocklist, sec.CommandAllowlist)
}
