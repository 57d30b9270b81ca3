package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/jask/unimarket/internal/catalog"
	"github.com/jask/unimarket/internal/config"
	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/markettest"
	"github.com/jask/unimarket/internal/service"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the server is up",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			state, err := e.auth.Health(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", e.client.BaseURL(), state)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), market.Describe(err))
			}
			return nil
		}),
	}
}

func credentialFlags(cmd *cobra.Command, creds *market.Credentials) {
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "account name")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
}

func newRegisterCmd() *cobra.Command {
	var creds market.Credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			u, err := e.auth.Register(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", u.Username)
			return nil
		}),
	}
	credentialFlags(cmd, &creds)
	return cmd
}

func newLoginCmd() *cobra.Command {
	var creds market.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			tok, err := e.auth.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", creds.Username, tok.Preview())
			return nil
		}),
	}
	credentialFlags(cmd, &creds)
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			if err := e.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		}),
	}
}

func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "categories", Short: "List or add categories"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show all categories",
			Args:  cobra.NoArgs,
			RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
				cats, err := e.dir.Refresh(cmd.Context())
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "server unavailable, showing cached list: %s\n", market.Describe(err))
				}
				for _, c := range cats {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", c.ID, c.Name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add NAME",
			Short: "Create a category",
			Args:  cobra.ExactArgs(1),
			RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
				c, err := e.dir.Create(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created category %d %s\n", c.ID, c.Name)
				return nil
			}),
		},
	)
	return cmd
}

func newItemsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "items", Short: "List or create items"}
	cmd.AddCommand(newItemsListCmd(), newItemsCreateCmd())
	return cmd
}

func newItemsListCmd() *cobra.Command {
	var category, sortBy, order, limit, offset string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show one page of items",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			ctx := cmd.Context()
			view := e.cfg.InitialView()
			view.PageSize = catalog.ParseLimit(limit, view.PageSize)
			view.PageOffset = catalog.ParseOffset(offset, view.PageOffset)
			if sortBy != "" {
				key, err := catalog.ParseSortKey(sortBy)
				if err != nil {
					return err
				}
				view.SortKey = key
			}
			if order != "" {
				o, err := catalog.ParseSortOrder(order)
				if err != nil {
					return err
				}
				view.SortOrder = o
			}
			if category != "" {
				c, err := e.dir.Resolve(ctx, category)
				if err != nil {
					return err
				}
				view.CategoryFilter = &c.ID
			}

			res := e.engine.Load(ctx, view)
			listing := catalog.Render(res)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, listing.Text())
			if listing.State == catalog.ListingError {
				return res.Err
			}
			fmt.Fprintln(out, listing.Summary())
			fmt.Fprintf(out, "next: --offset %d  prev: --offset %d\n",
				res.View.NextPage().PageOffset, res.View.PreviousPage().PageOffset)
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&category, "category", "", "category id or name")
	f.StringVar(&sortBy, "sort", "", "sort key: id, name or price")
	f.StringVar(&order, "order", "", "asc or desc")
	f.StringVar(&limit, "limit", "", "page size")
	f.StringVar(&offset, "offset", "", "page offset")
	return cmd
}

func newItemsCreateCmd() *cobra.Command {
	var draft service.ItemDraft
	var category, imagePath string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an item, optionally with an image",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, _ []string, e *env) error {
			ctx := cmd.Context()
			if category != "" {
				c, err := e.dir.Resolve(ctx, category)
				if err != nil {
					return err
				}
				draft.CategoryID = &c.ID
			}
			var asset *market.Asset
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return errors.Wrap(err, "read image")
				}
				asset = &market.Asset{Filename: filepath.Base(imagePath), Data: data}
			}
			res, err := e.creator.Create(ctx, draft, asset)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
			fmt.Fprintln(cmd.OutOrStdout(), catalog.ItemLine(res.Item))
			return nil
		}),
	}
	f := cmd.Flags()
	f.StringVar(&draft.Name, "name", "", "item name")
	f.StringVar(&draft.Price, "price", "", "price, greater than 0")
	f.StringVar(&draft.Description, "description", "", "optional description")
	f.StringVar(&category, "category", "", "category id or name")
	f.StringVar(&imagePath, "image", "", "image file to attach")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or write the configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "write",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration written")
			return nil
		},
	})
	return cmd
}

func newSandboxCmd() *cobra.Command {
	var addr, user, password string
	var seed bool
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run an in-memory marketplace server for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			sb := markettest.New(markettest.WithLogger(logger))
			if user != "" {
				if err := sb.AddUser(user, password); err != nil {
					return err
				}
			}
			if seed {
				seedSandbox(sb)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              addr,
				Handler:           sb,
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("sandbox listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	f.StringVar(&user, "user", "demo", "account to create at startup (empty for none)")
	f.StringVar(&password, "password", "demo", "password for --user")
	f.BoolVar(&seed, "seed", true, "add sample categories and items")
	return cmd
}

func seedSandbox(sb *markettest.Server) {
	books := sb.AddCategory("Books")
	games := sb.AddCategory("Games")
	tools := sb.AddCategory("Tools")
	sb.AddItem("Dune", "9.99", &books)
	sb.AddItem("The Hobbit", "7.50", &books)
	sb.AddItem("Chess set", "24.00", &games)
	sb.AddItem("Go board", "39.90", &games)
	sb.AddItem("Hammer", "12.50", &tools)
	sb.AddItem("Screwdriver set", "18.25", &tools)
	sb.AddItem("Gift card", "50", nil)
}
