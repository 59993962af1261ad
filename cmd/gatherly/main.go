// Package main is the gatherly command-line client.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/gatherly/client/internal/api"
	"github.com/gatherly/client/internal/app"
	"github.com/gatherly/client/internal/command"
	"github.com/gatherly/client/internal/config"
	"github.com/gatherly/client/internal/models"
	"github.com/gatherly/client/internal/notify"
	"github.com/gatherly/client/internal/realtime"
	"github.com/gatherly/client/internal/storage"
	"github.com/gatherly/client/internal/syncer"
)

func main() {
	cliApp := &cli.App{
		Name:  "gatherly",
		Usage: "Command-line client for the gatherly event platform.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the TOML config file",
				Value: "gatherly.toml",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			eventsCommand(),
			applyCommand(),
			decideCommand("accept", "Approve a pending participant request."),
			decideCommand("reject", "Decline a pending participant request."),
			watchCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Printf("gatherly: %v", err)
		os.Exit(1)
	}
}

// env bundles the wired-up client components.
type env struct {
	cfg      *config.Config
	db       *storage.DB
	gateway  *api.Client
	machine  *app.Machine
	notifier *notify.Notifier
}

// setup wires the client from configuration. Callers must Close.
func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	db, err := storage.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	sessions := storage.NewSessionRepository(db)
	gateway := api.NewClient(cfg.APIBaseURL, sessions, cfg.RequestTimeout)
	machine := app.NewMachine(gateway, sessions)

	notifier := notify.NewNotifier()
	notifier.Subscribe(func(n notify.Notice) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Type, n.Message)
	})

	return &env{
		cfg:      cfg,
		db:       db,
		gateway:  gateway,
		machine:  machine,
		notifier: notifier,
	}, nil
}

// Close releases the environment's resources.
func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		log.Printf("Closing state database: %v", err)
	}
}

// sessions returns the persistent session store.
func (e *env) sessions() *storage.SessionRepository {
	return storage.NewSessionRepository(e.db)
}

// requireUser initializes the machine and fails when nobody is signed in.
func (e *env) requireUser(ctx context.Context) (*models.User, error) {
	e.machine.Initialize(ctx)
	user := e.machine.User()
	if user == nil {
		return nil, fmt.Errorf("not signed in, run `gatherly login` first")
	}
	return user, nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and persist the session.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Account email", Required: true},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			fmt.Print("Password: ")
			reader := bufio.NewReader(os.Stdin)
			password, _ := reader.ReadString('\n')
			password = strings.TrimSpace(password)

			user, err := e.machine.Login(c.Context, api.Credentials{
				Email:    c.String("email"),
				Password: password,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Signed in as %s (%s)\n", user.Name, user.Role)
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out and discard the persisted session.",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			e.machine.Initialize(c.Context)
			e.machine.Logout(c.Context)
			fmt.Println("Signed out")
			return nil
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "List one event collection scope.",
		ArgsUsage: "<browse|registered|hosted-upcoming|hosted-past|history>",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			scope := models.Scope(c.Args().First())
			if !scope.Valid() {
				return fmt.Errorf("unknown scope %q", c.Args().First())
			}

			if _, err := e.requireUser(c.Context); err != nil {
				return err
			}

			engine := syncer.NewEngine(scope, e.gateway)
			if err := engine.LoadInitial(c.Context, nil); err != nil {
				return err
			}

			printEvents(engine.Events())
			return nil
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Request to join an event.",
		ArgsUsage: "<event-id>",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := e.requireUser(c.Context); err != nil {
				return err
			}

			runner, engine := e.newRunner(models.ScopeBrowse)
			if err := engine.LoadInitial(c.Context, nil); err != nil {
				return err
			}

			return runner.Execute(c.Context, command.Command{
				Action:  command.ActionApply,
				EventID: c.Args().First(),
				Scope:   models.ScopeBrowse,
			})
		},
	}
}

// decideCommand builds the host-side accept/reject subcommands; the two
// differ only in the action they dispatch.
func decideCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<event-id> <participant-id>",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			user, err := e.requireUser(c.Context)
			if err != nil {
				return err
			}
			if !user.IsHost() {
				return fmt.Errorf("only hosts can %s participants", name)
			}

			runner, engine := e.newRunner(models.ScopeHostedUpcoming)
			if err := engine.LoadInitial(c.Context, nil); err != nil {
				return err
			}

			return runner.Execute(c.Context, command.Command{
				Action:        command.Action(name),
				EventID:       c.Args().Get(0),
				ParticipantID: c.Args().Get(1),
				Scope:         models.ScopeHostedUpcoming,
			})
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Hold the realtime channel open and keep a scope synchronized.",
		ArgsUsage: "[scope]",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.Close()

			scope := models.ScopeBrowse
			if arg := c.Args().First(); arg != "" {
				scope = models.Scope(arg)
				if !scope.Valid() {
					return fmt.Errorf("unknown scope %q", arg)
				}
			}

			if _, err := e.requireUser(c.Context); err != nil {
				return err
			}

			engine := syncer.NewEngine(scope, e.gateway)
			if err := engine.LoadInitial(c.Context, nil); err != nil {
				return err
			}
			printEvents(engine.Events())

			channel := realtime.NewChannel(e.cfg.HubURL, e.sessions())
			unsubscribe := channel.Subscribe(func(delta models.Delta) {
				engine.ApplyDelta(delta)
				log.Printf("Applied %s delta for event %s (%d events in %s)",
					delta.Action, delta.Event.ID, engine.Len(), scope)
			})
			defer unsubscribe()

			channel.Start()
			defer channel.Stop()

			// Periodic full refresh as a safety net over at-least-once
			// push delivery.
			refresher := cron.New()
			refresher.AddFunc("@every 5m", func() {
				if err := engine.Refresh(context.Background(), nil); err != nil {
					log.Printf("Periodic refresh failed: %v", err)
				}
			})
			refresher.Start()
			defer refresher.Stop()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Println("Shutting down")
			return nil
		},
	}
}

// newRunner wires a command runner with a single engine for the scope.
func (e *env) newRunner(scope models.Scope) (*command.Runner, *syncer.Engine) {
	engine := syncer.NewEngine(scope, e.gateway)
	runner := command.NewRunner(e.gateway, e.machine, e.notifier, map[models.Scope]command.Refresher{
		scope: engine,
	})
	return runner, engine
}

// printEvents renders a collection to stdout.
func printEvents(events []models.Event) {
	if len(events) == 0 {
		fmt.Println("No events")
		return
	}
	for _, ev := range events {
		start := "unscheduled"
		if ev.StartsAt != nil {
			start = ev.StartsAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-24s  %-20s  %s (%d accepted)\n", ev.ID, start, ev.Title, ev.AcceptedCount())
	}
}
