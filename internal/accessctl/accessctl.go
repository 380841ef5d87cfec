// Package accessctl реализует операторскую утилиту для проверки и изменения доступа.
package accessctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/community-access/internal/client/entitlements"
	"github.com/magabrotheeeer/community-access/internal/entitlement"
	"github.com/magabrotheeeer/community-access/internal/models"
	"github.com/magabrotheeeer/community-access/internal/routeguard"
)

// SubscriptionManager изменяет подписку.
type SubscriptionManager interface {
	Grant(ctx context.Context, actor, userUID string, plan models.Plan, days int) (*models.User, error)
	Revoke(ctx context.Context, actor, userUID string) (*models.User, error)
}

// EventLister читает журнал изменений доступа.
type EventLister interface {
	ListAccessEvents(ctx context.Context, userUID string, limit int) ([]models.AccessEvent, error)
}

// Deps зависимости команд.
type Deps struct {
	Users         entitlement.UserFinder
	Resolver      *entitlement.Resolver
	Subscriptions SubscriptionManager
	Events        EventLister
	Clock         func() time.Time
}

// Opener открывает зависимости перед выполнением команды. Возвращённая функция
// закрывает их после выполнения.
type Opener func(ctx context.Context) (*Deps, func() error, error)

// Команды с этой аннотацией не открывают базу и брокер.
const annotationOffline = "offline"

type cli struct {
	open  Opener
	deps  *Deps
	close func() error
	actor string
}

// NewRootCommand собирает дерево команд accessctl.
func NewRootCommand(open Opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:           "accessctl",
		Short:         "Inspect and change community access",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Annotations[annotationOffline] == "true" {
				return nil
			}
			deps, closeFn, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if deps.Clock == nil {
				deps.Clock = time.Now
			}
			c.deps, c.close = deps, closeFn
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.close == nil {
				return nil
			}
			return c.close()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&c.actor, "actor", defaultActor(), "actor recorded in access events")

	root.AddCommand(c.resolveCmd(), c.grantCmd(), c.revokeCmd(), c.eventsCmd(), guardCmd())
	return root
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli:" + u
	}
	return "cli"
}

func (c *cli) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <userId>",
		Short: "Print the access decision for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, user, err := c.deps.Resolver.Lookup(cmd.Context(), c.deps.Users, args[0], c.deps.Clock())
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"userId":       args[0],
				"found":        user != nil,
				"decision":     decision,
				"entitlements": entitlement.Summarize(decision),
				"errorCode":    entitlement.ErrorCode(decision),
			})
		},
	}
}

func (c *cli) grantCmd() *cobra.Command {
	var (
		plan string
		days int
	)
	cmd := &cobra.Command{
		Use:   "grant <userId>",
		Short: "Activate a paid plan for a number of days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.deps.Subscriptions.Grant(cmd.Context(), c.actor, args[0], models.ParsePlan(plan), days)
			if err != nil {
				return explain("grant", args[0], err)
			}
			return writeJSON(cmd.OutOrStdout(), user)
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "plan to grant: aura or a7fx")
	cmd.Flags().IntVar(&days, "days", 30, "subscription length in days")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func (c *cli) revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <userId>",
		Short: "Cancel the subscription and fall back to the free plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.deps.Subscriptions.Revoke(cmd.Context(), c.actor, args[0])
			if err != nil {
				return explain("revoke", args[0], err)
			}
			return writeJSON(cmd.OutOrStdout(), user)
		},
	}
}

func (c *cli) eventsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events <userId>",
		Short: "Show recent access events for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := c.deps.Events.ListAccessEvents(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("events %s: %w", args[0], err)
			}
			if events == nil {
				events = []models.AccessEvent{}
			}
			return writeJSON(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of events")
	return cmd
}

func guardCmd() *cobra.Command {
	var (
		apiURL  string
		token   string
		manage  bool
		refresh bool
	)
	cmd := &cobra.Command{
		Use:         "guard <path>",
		Short:       "Show what the client route guard does for a token and path",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client := entitlements.New(apiURL)
			outcome, err := routeguard.FromClient(cmd.Context(), client, routeguard.Request{
				Token:      token,
				Path:       args[0],
				ManageMode: manage,
				Refresh:    refresh,
			})
			if err != nil {
				return fmt.Errorf("guard %s: %w", args[0], err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"action": outcome.Action.String(),
				"target": outcome.Target,
			})
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "community API base URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("ACCESS_TOKEN"), "bearer token, empty for an anonymous visitor")
	cmd.Flags().BoolVar(&manage, "manage", false, "the user opened the plans page to change plan")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the entitlement cache")
	return cmd
}

func explain(action, userUID string, err error) error {
	if errors.Is(err, models.ErrUserNotFound) {
		return fmt.Errorf("%s %s: user not found", action, userUID)
	}
	return fmt.Errorf("%s %s: %w", action, userUID, err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
